package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	l := New("dev", "debug")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)

	l = New("prod", "bogus")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
}

func TestComponent(t *testing.T) {
	e := Component(New("prod", "info"), "booking")
	assert.Equal(t, "booking", e.Data["component"])
}
