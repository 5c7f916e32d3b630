package server

import (
	"net/http"
	"time"

	"givmon/internal/core/domain"
	"givmon/internal/sensorstore"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/sensors", s.SensorsHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type sensorEntry struct {
	Record     any   `json:"record"`
	AgeSeconds int64 `json:"age_seconds"`
}

// SensorsHandler dumps every record in the shared store along with its
// age, mainly for poking at the system from a shell.
func (s *Server) SensorsHandler(c echo.Context) error {
	now := time.Now().Unix()
	age := func(ts uint32) int64 {
		if ts == 0 {
			return -1
		}
		return now - int64(ts)
	}

	var ev sensorstore.EVChargerRecord
	var telemetry sensorstore.TelemetryRecord
	var tariff sensorstore.TariffRecord
	var heatPump sensorstore.HeatPumpRecord
	var carBattery sensorstore.CarBatteryRecord
	var forecast sensorstore.ForecastRecord
	for _, r := range []sensorstore.Record{&ev, &telemetry, &tariff, &heatPump, &carBattery, &forecast} {
		if err := s.store.Load(r); err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, map[string]sensorEntry{
		"ev_charger":  {Record: ev, AgeSeconds: age(ev.Timestamp)},
		"telemetry":   {Record: telemetry, AgeSeconds: age(telemetry.Timestamp)},
		"tariff":      {Record: tariff, AgeSeconds: age(tariff.Timestamp)},
		"heat_pump":   {Record: heatPump, AgeSeconds: age(heatPump.Timestamp)},
		"car_battery": {Record: carBattery, AgeSeconds: age(carBattery.Timestamp)},
		"forecast":    {Record: forecast, AgeSeconds: age(forecast.Timestamp)},
	})
}
