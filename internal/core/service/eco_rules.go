package service

import (
	"givmon/internal/core/domain"
)

// ecoContext carries everything the eco rule chain inspects, plus the
// outcome: the desired eco flag and a possibly shrunk delay.
type ecoContext struct {
	hhmm   int
	active bool
	sched  Schedule
	adjust domain.AdjustDirection
	latch  domain.NightLatch
	eco    bool
	ed     bool
	solar  *Smoother
	gen    *Smoother
	export *Smoother

	want  bool
	delay float64
}

func (c *ecoContext) capDelay(max float64) {
	if c.delay > max {
		c.delay = max
	}
}

type ecoRule struct {
	name    string
	applies func(*ecoContext) bool
	outcome func(*ecoContext)
}

// The eco rule chain, strictly ordered, first match wins. Asymmetric
// thresholds between the turn-off rule and the turn-on rules are the
// hysteresis that stops eco flapping as clouds pass.
var ecoRules = []ecoRule{
	{
		// cheap rate started: follow the overnight latch, idling the
		// battery before its recharge if it still had charge to spare
		name:    "late-night-latch",
		applies: func(c *ecoContext) bool { return c.hhmm >= 2330 },
		outcome: func(c *ecoContext) { c.want = c.latch == domain.LatchActive },
	},
	{
		// dead zone while overnight charging settles in
		name:    "midnight-hold",
		applies: func(c *ecoContext) bool { return c.hhmm < 100 },
		outcome: func(c *ecoContext) {},
	},
	{
		// past the discharge timer we want dynamic discharge again
		name:    "past-discharge-window",
		applies: func(c *ecoContext) bool { return c.hhmm >= c.sched.DischargeEnd },
		outcome: func(c *ecoContext) { c.want = true },
	},
	{
		// solar charging needs eco on
		name:    "charge-wanted",
		applies: func(c *ecoContext) bool { return c.adjust == domain.AdjustCharge },
		outcome: func(c *ecoContext) { c.want = true },
	},
	{
		// eco is on: turn it off only on a three-timescale confirmation
		// of high solar, so a brief clear spell does not flip it
		name:    "eco-on",
		applies: func(c *ecoContext) bool { return c.eco },
		outcome: func(c *ecoContext) {
			if c.active && c.solar.Value() > 5000 && c.solar.Fast() > 4000 && c.solar.Slow() > 3000 {
				c.want = false
			}
		},
	},
	{
		// drifted past the end of the pause timer with eco still off
		name:    "inactive",
		applies: func(c *ecoContext) bool { return !c.active },
		outcome: func(c *ecoContext) { c.want = true },
	},
	{
		name: "solar-very-low",
		applies: func(c *ecoContext) bool {
			return c.solar.Value() < 1000 && c.solar.Fast() < 1500 && c.solar.DecayFloor() < 3000
		},
		outcome: func(c *ecoContext) { c.want = true },
	},
	{
		// cooking time approaches, get ahead of the evening load spike
		name: "evening-load",
		applies: func(c *ecoContext) bool {
			return c.hhmm > 1730 && c.solar.Slow() < 4000
		},
		outcome: func(c *ecoContext) { c.want = true },
	},
	{
		// a concurrent forced discharge covers house load for now, but
		// check again soon
		name: "discharge-covering",
		applies: func(c *ecoContext) bool {
			return c.ed && c.gen.Fast() >= 2000 && c.export.Fast() > 0
		},
		outcome: func(c *ecoContext) { c.capDelay(60) },
	},
	{
		name: "solar-low",
		applies: func(c *ecoContext) bool {
			return c.solar.Value() < 1500 && c.solar.Fast() < 2500 && c.solar.DecayFloor() < 4000
		},
		outcome: func(c *ecoContext) { c.want = true },
	},
	{
		// staying off: don't idle too long
		name:    "stay-off",
		applies: func(c *ecoContext) bool { return true },
		outcome: func(c *ecoContext) { c.capDelay(60) },
	},
}

// apply evaluates the chain and returns the name of the matched rule.
func (c *ecoContext) apply() string {
	for _, r := range ecoRules {
		if r.applies(c) {
			r.outcome(c)
			return r.name
		}
	}
	return ""
}
