package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionGuilds(t *testing.T) {
	tests := []struct {
		name         string
		stored       []uint64
		live         map[uint64]struct{}
		wantSwept    []uint64
		wantOrphaned []uint64
	}{
		{
			name:         "all guilds live",
			stored:       []uint64{1, 2, 3},
			live:         map[uint64]struct{}{1: {}, 2: {}, 3: {}},
			wantSwept:    []uint64{1, 2, 3},
			wantOrphaned: nil,
		},
		{
			name:         "some guilds departed",
			stored:       []uint64{1, 2, 3, 4},
			live:         map[uint64]struct{}{2: {}, 4: {}},
			wantSwept:    []uint64{2, 4},
			wantOrphaned: []uint64{1, 3},
		},
		{
			name:         "all guilds departed",
			stored:       []uint64{5, 6},
			live:         map[uint64]struct{}{7: {}},
			wantSwept:    nil,
			wantOrphaned: []uint64{5, 6},
		},
		{
			name:         "nothing stored",
			stored:       nil,
			live:         map[uint64]struct{}{1: {}},
			wantSwept:    nil,
			wantOrphaned: nil,
		},
		{
			name:         "live guilds without records are ignored",
			stored:       []uint64{1},
			live:         map[uint64]struct{}{1: {}, 2: {}, 3: {}},
			wantSwept:    []uint64{1},
			wantOrphaned: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swept, orphaned := partitionGuilds(tt.stored, tt.live)

			assert.Equal(t, tt.wantSwept, swept)
			assert.Equal(t, tt.wantOrphaned, orphaned)
		})
	}
}
