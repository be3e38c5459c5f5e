package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.NATSSubject != "documents.loaded" {
		t.Fatalf("NATSSubject = %q", cfg.NATSSubject)
	}
	if cfg.SplitAlgorithm != "lazy" {
		t.Fatalf("SplitAlgorithm = %q", cfg.SplitAlgorithm)
	}
	if cfg.CompletionStrategy != "forbidden" || cfg.ContextBudgetTokens != 8192 || cfg.MaxContinuationRounds != 10 {
		t.Fatalf("unexpected completion defaults: %+v", cfg)
	}
	if cfg.ConsensusStrategy != "consensus" || cfg.ConsensusThreshold != 9 || cfg.ConsensusVoters != 3 {
		t.Fatalf("unexpected consensus defaults: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SPLIT_ALGORITHM", "eager")
	t.Setenv("COMPLETION_STRATEGY", "paginate")
	t.Setenv("CONSENSUS_THRESHOLD", "7")
	t.Setenv("PAGINATE_STRICT", "true")
	t.Setenv("OLLAMA_RPS", "2.5")

	cfg := Load()
	if cfg.SplitAlgorithm != "eager" || cfg.CompletionStrategy != "paginate" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.ConsensusThreshold != 7 || !cfg.PaginateStrict || cfg.OllamaRPS != 2.5 {
		t.Fatalf("typed env overrides not applied: %+v", cfg)
	}
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("CONSENSUS_THRESHOLD", "many")
	t.Setenv("PAGINATE_STRICT", "kinda")

	cfg := Load()
	if cfg.ConsensusThreshold != 9 || cfg.PaginateStrict {
		t.Fatalf("unparsable values must fall back to defaults: %+v", cfg)
	}
}
