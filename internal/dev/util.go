package dev

import (
	"encoding/json"
	"github.com/ZilDuck/opentrade/internal/config"
	"go.uber.org/zap"
)

// Dump logs el as indented JSON in debug mode.
func Dump(el interface{}) {
	if config.Get().Debug {
		elJson, _ := json.MarshalIndent(el, "", "  ")
		zap.S().Debug(string(elJson))
	}
}
