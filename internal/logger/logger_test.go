package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("")

	tests := []struct {
		name string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"WARNING", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"", log.InfoLevel},
		{"bogus", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLevel(tt.name)
			assert.Equal(t, tt.want, Logger.GetLevel())
		})
	}
}
