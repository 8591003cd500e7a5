package device

import (
	"encoding/json"
	"testing"

	"gotest.tools/assert"
)

func TestParseIDs(t *testing.T) {
	cases := []struct {
		in      string
		want    []ID
		wantErr string
	}{
		{in: "", want: nil},
		{in: "0", want: []ID{0}},
		{in: "0,1,2,3", want: []ID{0, 1, 2, 3}},
		{in: " 4, 5 ,", want: []ID{4, 5}},
		{in: "0,GPU-1", wantErr: `invalid accelerator id "GPU-1"`},
		{in: "-1", wantErr: "must be non-negative"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseIDs(tc.in)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			assert.NilError(t, err)
			assert.DeepEqual(t, got, tc.want)
		})
	}
}

func TestFormatIDs(t *testing.T) {
	assert.Equal(t, FormatIDs(nil), "")
	assert.Equal(t, FormatIDs([]ID{2, 3}), "2,3")

	ids, err := ParseIDs(FormatIDs([]ID{7, 1, 9}))
	assert.NilError(t, err)
	assert.DeepEqual(t, ids, []ID{7, 1, 9})
}

func TestDeviceString(t *testing.T) {
	d := Device{ID: 1, Brand: "Tesla V100", Type: CUDA}
	assert.Equal(t, d.String(), "cuda1 (Tesla V100)")
}

func TestIDUnmarshalJSON(t *testing.T) {
	var ids []ID
	assert.NilError(t, json.Unmarshal([]byte(`[0, "1", " 2"]`), &ids))
	assert.DeepEqual(t, ids, []ID{0, 1, 2})

	assert.ErrorContains(t, json.Unmarshal([]byte(`["x"]`), &ids), `invalid accelerator id "x"`)
	assert.ErrorContains(t, json.Unmarshal([]byte(`[true]`), &ids), "must be a number")
}
