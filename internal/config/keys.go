package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "VERBA_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Backend.BaseURL = v.(string) },
	},
	{
		env: "VERBA_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Backend.Port = v.(int) },
	},
	{
		env: "CHUNK_SIZE", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Upload.ChunkSize = v.(int) },
	},
	{
		env: "WEAVIATE_TENANT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.App.Tenant = v.(string) },
	},
	{
		env: "VERBA_CHAT_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.App.DataDir = v.(string) },
	},
	{
		env: "VERBA_CHAT_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.App.Port = v.(int) },
	},
	{
		env: "VERBA_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.App.LogLevel = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
