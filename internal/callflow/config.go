package callflow

import (
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/pkg/env"
)

// OptionsFromEnv maps process configuration onto per-call options
func OptionsFromEnv(cfg *env.Config) Options {
	lang, ok := language.Parse(cfg.DefaultLanguage)
	if !ok {
		lang = language.English
	}
	return Options{
		Machine: Config{
			Flow:             Flow(cfg.CallFlow),
			DefaultLanguage:  lang,
			ConfirmSilence:   cfg.ConfirmSilence,
			ChatSilence:      cfg.ChatSilence,
			MaxAttempts:      cfg.MaxConfirmAttempts,
			RefusalThreshold: cfg.RefusalThreshold,
			MaxTurns:         cfg.MaxTurns,
			HangupGrace:      cfg.HangupGrace,
		},
		NoInputTimeout: cfg.NoInputTimeout,
		Watchdog:       cfg.CallWatchdog,
		VADThreshold:   float64(cfg.VADThreshold),
		BargeIn:        cfg.BargeIn,
		AgentNumber:    cfg.AgentNumber,
	}
}
