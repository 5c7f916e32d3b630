package givmodbus

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Transport is the register-level view of the inverter the controller
// consumes: connect, periodic refresh, batch writes with retry.
type Transport interface {
	Open() error
	Close() error
	Refresh(full bool, withCells bool) (*Snapshot, error)
	Execute(writes []RegisterWrite, timeout time.Duration, retries int) error
}

// Client talks to a GivEnergy inverter over modbus TCP. Holding registers
// are cached between full refreshes; writes issued through Execute update
// the cache so the next diff sees the committed values.
type Client struct {
	client  *modbus.ModbusClient
	logger  *zap.Logger
	holding map[uint16]uint16
}

func CreateClient(host string, port uint, unitId uint8, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	mc, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", host, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if unitId > 0 {
		if err := mc.SetUnitId(unitId); err != nil {
			return nil, err
		}
	}
	return &Client{
		client:  mc,
		logger:  logger.With(zap.String("target", "inverter")),
		holding: make(map[uint16]uint16),
	}, nil
}

func (c *Client) Open() error {
	return c.client.Open()
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Refresh reads the input register blocks and, when full is set or the
// cache is cold, the holding register blocks too. withCells additionally
// reads the per-cell battery voltages at IRCellVoltageBase.
func (c *Client) Refresh(full bool, withCells bool) (*Snapshot, error) {
	if full || len(c.holding) == 0 {
		for _, base := range holdingBlocks {
			regs, err := c.client.ReadRegisters(base, blockSize, modbus.HOLDING_REGISTER)
			if err != nil {
				return nil, &TransportError{Op: fmt.Sprintf("read holding block %d", base), Err: err}
			}
			for i, v := range regs {
				c.holding[base+uint16(i)] = v
			}
		}
	}

	ir0, err := c.client.ReadRegisters(0, blockSize, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, &TransportError{Op: "read input block 0", Err: err}
	}
	ir60, err := c.client.ReadRegisters(60, blockSize, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, &TransportError{Op: "read input block 60", Err: err}
	}
	input := func(addr uint16) uint16 {
		if addr < 60 {
			return ir0[addr]
		}
		return ir60[addr-60]
	}

	snap := &Snapshot{
		At:               time.Now(),
		SolarWatt:        float64(input(IRPV1Power)) + float64(input(IRPV2Power)),
		GenerationWatt:   float64(int16(input(IRInverterOutput))),
		GridExportWatt:   float64(int16(input(IRGridOutput))),
		BatteryWatt:      float64(int16(input(IRBatteryPower))),
		BackupWatt:       float64(int16(input(IREPSBackupPower))),
		StateOfCharge:    int(input(IRBatterySoC)),
		HeatsinkTempC:    float64(int16(input(IRHeatsinkTemp))) / 10,
		EcoMode:          c.holding[HRBatteryPowerMode] == 1,
		PauseMode:        c.holding[HRBatteryPauseMode],
		DischargeEnabled: c.holding[HREnableDischarge] == 1,
		PauseStart:       int(c.holding[HRPauseSlotStart]),
		PauseEnd:         int(c.holding[HRPauseSlotEnd]),
		DischargeStart:   int(c.holding[HRDischargeSlot3Start]),
		DischargeEnd:     int(c.holding[HRDischargeSlot7End]),
	}
	targets := [...]uint16{HRChargeTargetSoC3, HRChargeTargetSoC4, HRChargeTargetSoC5, HRChargeTargetSoC6, HRChargeTargetSoC7}
	for i, reg := range targets {
		snap.ChargeTargetSoC[i] = int(c.holding[reg])
	}

	if withCells {
		cells, err := c.client.ReadRegisters(IRCellVoltageBase, CellCount, modbus.INPUT_REGISTER)
		if err != nil {
			return nil, &TransportError{Op: "read cell voltages", Err: err}
		}
		snap.CellVoltages = make([]float64, CellCount)
		for i, mv := range cells {
			snap.CellVoltages[i] = float64(mv) / 1000
		}
	}
	return snap, nil
}

// Execute commits a write batch. Each write is retried up to retries times;
// the batch fails on the first write whose retry budget is exhausted. The
// overall deadline is best-effort: once exceeded, remaining writes fail
// without touching the wire.
func (c *Client) Execute(writes []RegisterWrite, timeout time.Duration, retries int) error {
	deadline := time.Now().Add(timeout)
	for _, w := range writes {
		var err error
		for attempt := 0; attempt <= retries; attempt++ {
			if time.Now().After(deadline) {
				return &TransportError{Op: "execute " + w.String(), Err: fmt.Errorf("deadline exceeded")}
			}
			err = c.client.WriteRegister(w.Register, w.Value)
			if err == nil {
				break
			}
			c.logger.Warn("register write failed", zap.String("write", w.String()),
				zap.Int("attempt", attempt), zap.Error(err))
		}
		if err != nil {
			return &TransportError{Op: "execute " + w.String(), Err: err}
		}
		c.holding[w.Register] = w.Value
	}
	return nil
}

// ensure interface compliance
var _ Transport = (*Client)(nil)
