package progrock_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vito/progrock/console"
	"go.porto.sh/porto/internal/adapters/telemetry/progrock"
	"go.porto.sh/porto/internal/core/ports"
)

func TestRecordAttachesVertexToContext(t *testing.T) {
	recorder := progrock.New()
	require.NotNil(t, recorder)

	ctx, v := recorder.Record(context.Background(), "build hello-1.0-1")
	require.NotNil(t, v)
	assert.Same(t, v, ports.VertexFromContext(ctx))

	_, err := v.Stdout().Write([]byte("configuring\n"))
	assert.NoError(t, err)
	v.Complete(nil)

	assert.NoError(t, recorder.Close())
}

func TestConsoleWriterRendersVertexProgress(t *testing.T) {
	var out bytes.Buffer
	recorder := progrock.NewRecorder(console.NewWriter(&out))

	_, v := recorder.Record(context.Background(), "build hello-1.0-1")
	_, err := v.Stdout().Write([]byte("configuring\n"))
	require.NoError(t, err)
	v.Complete(nil)
	require.NoError(t, recorder.Close())

	assert.Contains(t, out.String(), "build hello-1.0-1")
	assert.Contains(t, out.String(), "configuring")
}
