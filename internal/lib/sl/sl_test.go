package sl_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
)

func TestErr_ReturnsCorrectAttr(t *testing.T) {
	err := errors.New("something went wrong")
	attr := sl.Err(err)

	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, slog.StringValue("something went wrong"), attr.Value)
}

func TestErr_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		attr := sl.Err(nil)
		assert.Equal(t, "<nil>", attr.Value.String())
	})
}

func TestOp(t *testing.T) {
	attr := sl.Op("session.ClearAuth")
	assert.Equal(t, "op", attr.Key)
	assert.Equal(t, "session.ClearAuth", attr.Value.String())
}

func TestNew_PicksHandlerByEnv(t *testing.T) {
	assert.IsType(t, &slog.TextHandler{}, sl.New("local", io.Discard).Handler())
	assert.IsType(t, &slog.JSONHandler{}, sl.New("prod", io.Discard).Handler())
}
