package main

import (
	"fmt"

	"github.com/Xanaaash/MiMind-sub000/internal/config"
	"github.com/Xanaaash/MiMind-sub000/internal/crisis"
	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/Xanaaash/MiMind-sub000/internal/engine/detectors"
	"go.uber.org/zap"
)

// core is the pure decision layer shared by every subcommand.
type core struct {
	detector *engine.SafetyDetector
	triage   *engine.TriageService
	policy   *engine.PolicyEngine
	hotlines *crisis.HotlineResolver
}

func buildCore(cfg *config.Config, logger *zap.Logger) (*core, error) {
	var (
		lex *detectors.Lexicon
		err error
	)
	if cfg.LexiconFile != "" {
		lex, err = detectors.LoadLexicon(cfg.LexiconFile)
	} else {
		lex, err = detectors.DefaultLexicon()
	}
	if err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}

	hotlines, err := loadHotlines(cfg)
	if err != nil {
		return nil, err
	}

	return &core{
		detector: engine.NewSafetyDetector(
			detectors.NewFastClassifier(lex),
			detectors.NewSemanticEvaluator(lex),
			logger,
		),
		triage:   engine.NewTriageService(),
		policy:   engine.NewPolicyEngine(cfg.Messages),
		hotlines: hotlines,
	}, nil
}

func loadHotlines(cfg *config.Config) (*crisis.HotlineResolver, error) {
	var (
		hotlines *crisis.HotlineResolver
		err      error
	)
	if cfg.HotlinesFile != "" {
		hotlines, err = crisis.LoadHotlineResolver(cfg.HotlinesFile)
	} else {
		hotlines, err = crisis.DefaultHotlineResolver()
	}
	if err != nil {
		return nil, fmt.Errorf("hotlines: %w", err)
	}
	return hotlines, nil
}
