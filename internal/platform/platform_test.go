// File: internal/platform/platform_test.go

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryKnowsBuiltinFlows(t *testing.T) {
	known := Known()
	assert.Contains(t, known, "arnona")
	assert.Contains(t, known, "meitav")
}

func TestNewUnknownPlatform(t *testing.T) {
	_, err := New("electricity", Deps{})
	var unknown *UnknownPlatformError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "electricity", unknown.Platform)
	assert.Contains(t, err.Error(), "arnona")
}

func TestNewBuildsRegisteredFlow(t *testing.T) {
	flow, err := New("arnona", Deps{})
	require.NoError(t, err)
	assert.Equal(t, "arnona", flow.Name())
	assert.NotEmpty(t, flow.EntryURL())
	assert.NotEmpty(t, flow.RequiredOrigins())

	flow, err = New("meitav", Deps{})
	require.NoError(t, err)
	assert.Equal(t, "meitav", flow.Name())
}

func TestMeitavPeriodLabel(t *testing.T) {
	assert.Equal(t, "5-2026", meitavPeriodLabel(Period{Year: 2026, Index: 5}))
}

func TestClickLinkByTextJSEscapesLabel(t *testing.T) {
	js := clickLinkByTextJS("table#datatable a", `ארנונה תקופתי 4`)
	assert.Contains(t, js, "table#datatable a")
	assert.Contains(t, js, "ארנונה תקופתי 4")
	// Quoting must come from %q so embedded quotes cannot break the script.
	js = clickLinkByTextJS("a", `with "quotes"`)
	assert.Contains(t, js, `with \"quotes\"`)
}
