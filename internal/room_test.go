package internal_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyko96/mafiozzy/internal"
)

// TestValidRoomID 測試房間 ID 文法
func TestValidRoomID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{name: "simple id", id: "room1", valid: true},
		{name: "single char", id: "a", valid: true},
		{name: "mixed charset", id: "Lobby_2-final", valid: true},
		{name: "max length", id: strings.Repeat("x", 32), valid: true},
		{name: "empty", id: "", valid: false},
		{name: "too long", id: strings.Repeat("x", 33), valid: false},
		{name: "whitespace", id: "room 1", valid: false},
		{name: "punctuation", id: "room#1", valid: false},
		{name: "non-ascii", id: "房間一", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, internal.ValidRoomID(tt.id))
		})
	}
}

// TestRoomRegistry_Create 測試房間建立
func TestRoomRegistry_Create(t *testing.T) {
	t.Run("host becomes first member", func(t *testing.T) {
		registry := internal.NewRoomRegistry(newTestLogger())

		require.NoError(t, registry.Create("room1", "host-token"))

		room, err := registry.Get("room1")
		require.NoError(t, err)

		members, host, locked := room.MemberSnapshot()
		assert.Equal(t, []string{"host-token"}, members)
		assert.Equal(t, "host-token", host)
		assert.False(t, locked)
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		registry := internal.NewRoomRegistry(newTestLogger())
		assert.ErrorIs(t, registry.Create("bad id!", "h"), internal.ErrRoomIDInvalid)
		assert.ErrorIs(t, registry.Create("", "h"), internal.ErrRoomIDInvalid)
	})

	t.Run("duplicate id never overwrites", func(t *testing.T) {
		registry := internal.NewRoomRegistry(newTestLogger())
		require.NoError(t, registry.Create("room1", "first-host"))

		assert.ErrorIs(t, registry.Create("room1", "second-host"), internal.ErrRoomExists)

		// 既有房間的房主與成員不受影響
		room, err := registry.Get("room1")
		require.NoError(t, err)
		members, host, _ := room.MemberSnapshot()
		assert.Equal(t, "first-host", host)
		assert.Equal(t, []string{"first-host"}, members)
	})
}

// TestRoomRegistry_Join 測試加入房間的前置條件鏈
func TestRoomRegistry_Join(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, r *internal.RoomRegistry)
		roomID        string
		uid           string
		expectedError error
		validate      func(t *testing.T, r *internal.RoomRegistry)
	}{
		{
			name: "join preserves insertion order",
			setup: func(t *testing.T, r *internal.RoomRegistry) {
				require.NoError(t, r.Create("room1", "h"))
				require.NoError(t, r.Join("room1", "a"))
			},
			roomID: "room1",
			uid:    "b",
			validate: func(t *testing.T, r *internal.RoomRegistry) {
				room, err := r.Get("room1")
				require.NoError(t, err)
				members, _, _ := room.MemberSnapshot()
				assert.Equal(t, []string{"h", "a", "b"}, members)
			},
		},
		{
			name:          "invalid room id",
			setup:         func(t *testing.T, r *internal.RoomRegistry) {},
			roomID:        "bad id!",
			uid:           "a",
			expectedError: internal.ErrRoomIDInvalid,
		},
		{
			name:          "room not found",
			setup:         func(t *testing.T, r *internal.RoomRegistry) {},
			roomID:        "ghost-room",
			uid:           "a",
			expectedError: internal.ErrRoomNotFound,
		},
		{
			name: "already member",
			setup: func(t *testing.T, r *internal.RoomRegistry) {
				require.NoError(t, r.Create("room1", "h"))
				require.NoError(t, r.Join("room1", "a"))
			},
			roomID:        "room1",
			uid:           "a",
			expectedError: internal.ErrAlreadyMember,
			validate: func(t *testing.T, r *internal.RoomRegistry) {
				// 成員只計入一次
				room, err := r.Get("room1")
				require.NoError(t, err)
				members, _, _ := room.MemberSnapshot()
				assert.Equal(t, []string{"h", "a"}, members)
			},
		},
		{
			name: "host cannot rejoin",
			setup: func(t *testing.T, r *internal.RoomRegistry) {
				require.NoError(t, r.Create("room1", "h"))
			},
			roomID:        "room1",
			uid:           "h",
			expectedError: internal.ErrAlreadyMember,
		},
		{
			name: "locked room rejects new member",
			setup: func(t *testing.T, r *internal.RoomRegistry) {
				require.NoError(t, r.Create("room1", "h"))
				require.NoError(t, r.SetLocked("room1", true))
			},
			roomID:        "room1",
			uid:           "a",
			expectedError: internal.ErrRoomLocked,
			validate: func(t *testing.T, r *internal.RoomRegistry) {
				// 成員列表不受影響
				room, err := r.Get("room1")
				require.NoError(t, err)
				members, _, _ := room.MemberSnapshot()
				assert.Equal(t, []string{"h"}, members)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := internal.NewRoomRegistry(newTestLogger())
			tt.setup(t, registry)

			err := registry.Join(tt.roomID, tt.uid)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				require.NoError(t, err)
			}
			if tt.validate != nil {
				tt.validate(t, registry)
			}
		})
	}
}

// TestRoomRegistry_SetLocked 測試鎖定旗標
func TestRoomRegistry_SetLocked(t *testing.T) {
	registry := internal.NewRoomRegistry(newTestLogger())
	require.NoError(t, registry.Create("room1", "h"))

	// 鎖定後拒絕新成員
	require.NoError(t, registry.SetLocked("room1", true))
	assert.ErrorIs(t, registry.Join("room1", "a"), internal.ErrRoomLocked)

	// 解鎖後恢復正常
	require.NoError(t, registry.SetLocked("room1", false))
	require.NoError(t, registry.Join("room1", "a"))

	// 不存在的房間
	assert.ErrorIs(t, registry.SetLocked("ghost", true), internal.ErrRoomNotFound)
}

// TestRoom_MemberSnapshot 測試快照與後續變更隔離
func TestRoom_MemberSnapshot(t *testing.T) {
	registry := internal.NewRoomRegistry(newTestLogger())
	require.NoError(t, registry.Create("room1", "h"))

	room, err := registry.Get("room1")
	require.NoError(t, err)

	members, _, _ := room.MemberSnapshot()
	require.NoError(t, registry.Join("room1", "a"))

	// 先前取得的快照不會被後來的加入改動
	assert.Equal(t, []string{"h"}, members)
	assert.Equal(t, 2, room.MemberCount())
}

// TestRoomRegistry_Stats 測試統計資訊
func TestRoomRegistry_Stats(t *testing.T) {
	registry := internal.NewRoomRegistry(newTestLogger())
	require.NoError(t, registry.Create("room1", "h1"))
	require.NoError(t, registry.Create("room2", "h2"))
	require.NoError(t, registry.Join("room1", "a"))
	require.NoError(t, registry.SetLocked("room2", true))

	stats := registry.Stats()
	assert.Equal(t, 2, stats["total_rooms"])
	assert.Equal(t, 1, stats["locked_rooms"])
	assert.Equal(t, 3, stats["total_members"])

	assert.Equal(t, 2, registry.Count())
	assert.Len(t, registry.Summaries(), 2)
}
