package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =x,tenant=promo")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "promo"}, headers)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "promod"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestTracerIsUsableWithoutExporters(t *testing.T) {
	_, span := Tracer("core").Start(context.Background(), "noop")
	span.End()
}
