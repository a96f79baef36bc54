/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package misc

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env from the working directory.  Neither is required
// and values already in the environment are never overridden.
func LoadEnvSettings(log *slog.Logger) {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			Debugf(log, "loaded env file:%s", name)
		}
	}
}

// LoadEnvForProfile loads the .env.{profile} overrides - ie: .env.dev with locally generated
// mnemonics.
func LoadEnvForProfile(log *slog.Logger, profile string) {
	name := fmt.Sprintf(".env.%s", profile)
	if err := godotenv.Load(name); err == nil {
		Infof(log, "loaded env file:%s", name)
	}
}
