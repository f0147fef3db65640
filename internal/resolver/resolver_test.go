package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFinder holds ids oldest first, like the presentation index.
type fakeFinder struct {
	ids []string
	err error
}

func (f *fakeFinder) ScanPresentations(_ context.Context, prefix string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	for _, id := range f.ids {
		if strings.HasPrefix(id, strings.ToLower(prefix)) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeFinder) PresentationExists(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, known := range f.ids {
		if known == id {
			return true, nil
		}
	}
	return false, nil
}

const (
	older = "ab12cd34-0000-4000-8000-000000000001"
	newer = "ab12ef56-0000-4000-8000-000000000002"
	other = "9f00aa11-0000-4000-8000-000000000003"
)

func finder() *fakeFinder {
	return &fakeFinder{ids: []string{older, newer, other}}
}

func TestResolveJoinCode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		code    string
		want    string
		missing bool
	}{
		{"oldest match wins", "ab12", older, false},
		{"case insensitive", "AB12", older, false},
		{"whitespace trimmed", "  9f00 ", other, false},
		{"longer prefix reaches newer", "ab12e", newer, false},
		{"full uuid", newer, newer, false},
		{"unknown", "ffff", "", true},
		{"too short", "ab1", "", true},
		{"unknown full uuid", "ffffffff-0000-4000-8000-000000000009", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ResolveJoinCode(ctx, finder(), tt.code)
			if tt.missing {
				assert.True(t, IsNotFoundError(err), "expected NotFoundError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestResolveJoinCode_StoreError(t *testing.T) {
	_, err := ResolveJoinCode(context.Background(), &fakeFinder{err: errors.New("boom")}, "ab12")
	require.Error(t, err)
	assert.False(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestResolvePresentationID(t *testing.T) {
	ctx := context.Background()

	id, err := ResolvePresentationID(ctx, finder(), "ab12cd")
	require.NoError(t, err)
	assert.Equal(t, older, id)

	_, err = ResolvePresentationID(ctx, finder(), "ab12")
	assert.Error(t, err, "short IDs must be at least 6 characters")

	f := &fakeFinder{ids: []string{older, "ab12cd99-0000-4000-8000-000000000004"}}
	_, err = ResolvePresentationID(ctx, f, "ab12cd")
	require.True(t, IsAmbiguousError(err))

	msg := FormatAmbiguousError(err.(*AmbiguousError))
	assert.Contains(t, msg, older)
	assert.Contains(t, msg, "longer prefix")

	_, err = ResolvePresentationID(ctx, finder(), "cccccc")
	assert.True(t, IsNotFoundError(err))
}

func TestFormatAmbiguousError_Truncates(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = older
	}
	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "ab12cd", Matches: matches})
	assert.Contains(t, msg, "...and 2 more")
}

func TestCodeFor(t *testing.T) {
	ctx := context.Background()
	f := finder()

	code, err := CodeFor(ctx, f, older)
	require.NoError(t, err)
	assert.Equal(t, "ab12", code)

	code, err = CodeFor(ctx, f, newer)
	require.NoError(t, err)
	assert.Equal(t, "ab12e", code)

	code, err = CodeFor(ctx, f, other)
	require.NoError(t, err)
	assert.Equal(t, "9f00", code)

	for _, id := range f.ids {
		code, err := CodeFor(ctx, f, id)
		require.NoError(t, err)
		resolved, err := ResolveJoinCode(ctx, f, code)
		require.NoError(t, err)
		assert.Equal(t, id, resolved, "code %s must resolve back", code)
	}
}
