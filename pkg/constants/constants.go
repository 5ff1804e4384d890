package constants

import "time"

const (
	DefaultMaxActiveDownloads = 3
	// RatioDisabled marks seeding ratio enforcement as off
	RatioDisabled = -1.0
	// UnknownETA is the client's "infinite" ETA, 100 days in seconds
	UnknownETA = 8640000

	DefaultAvailabilityFloor = 0.001
	DefaultSizeOffset        = 0

	DefaultCycleInterval  = 600 * time.Second
	DefaultWarmupDuration = 120 * time.Second
	DefaultShutdownGrace  = 10 * time.Second

	DefaultRequestRate    = "20/s"
	DefaultRequestTimeout = 30 // seconds
	DefaultHistorySize    = 200
	DefaultRedrawLines    = 20
	DefaultHost           = "localhost"

	PortRecordFile = "config.json"
	SettingsFile   = "qhelper.yaml"
)

const (
	CodeExitOK        = 0
	CodeExitTransport = 1
	CodeExitConfig    = 2
)
