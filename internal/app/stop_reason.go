package app

import "standupbot/internal/runtime/lifecycle"

type StopReason = lifecycle.StopReason

const (
	StopUnknown    = lifecycle.StopUnknown
	StopSignal     = lifecycle.StopSignal
	StopFatalError = lifecycle.StopFatalError
)
