package internal

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// 系統設計問題：
//   如何在並發環境下保證房間的唯一性與成員一致性？
//
// 核心挑戰：
//   1. 競態建立：兩個同 ID 的 create 同時到達，只能有一個成功
//   2. 冪等加入：同一身份重複 join 不得重複計入成員
//   3. 一致讀取：成員查詢必須看到時間點快照（不見加入中途狀態）
//
// 設計方案：
//   ✅ 註冊表鎖 - 建立的「檢查 + 插入」在同一臨界區內完成
//   ✅ 房間層級 RWMutex - 同房間的變更互斥，不同房間互不影響
//   ✅ 快照複本 - 讀取端拿到成員列表的複本，與後續變更隔離

// 房間註冊表錯誤
var (
	ErrRoomIDInvalid = errors.New("房間 ID 無效")
	ErrRoomExists    = errors.New("房間 ID 已被使用")
	ErrRoomNotFound  = errors.New("房間不存在")
	ErrAlreadyMember = errors.New("已在房間內")
	ErrRoomLocked    = errors.New("房間已鎖定")
)

// maxRoomIDLength 房間 ID 長度上限
const maxRoomIDLength = 32

// ValidRoomID 驗證房間 ID 文法：1-32 個 [A-Za-z0-9_-] 字元
func ValidRoomID(id string) bool {
	if len(id) == 0 || len(id) > maxRoomIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// Room 一個具名的成員群組
//
// 不變量：
//   - Members 依加入順序、不重複；首位恆為房主
//   - Host 在建立後不可變，且永遠是成員
//   - Locked 為 true 時拒絕新的加入
//
// 生命週期：由 cr 指令建立，之後不會被刪除（進程生命週期）。
type Room struct {
	ID        string    `json:"room_id"`
	Members   []string  `json:"members"` // 成員身份令牌，依加入順序
	Host      string    `json:"host"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`

	Mu sync.RWMutex `json:"-"` // 房間層級讀寫鎖（並發控制）
}

// addMember 加入成員（前置條件鏈，首個失敗者勝出）
//
// 檢查與追加在房間鎖內完成，並發 join 不會重複計入同一成員。
func (room *Room) addMember(uid string) error {
	room.Mu.Lock()
	defer room.Mu.Unlock()

	// 冪等守衛：集合語義的成員檢查
	for _, member := range room.Members {
		if member == uid {
			return ErrAlreadyMember
		}
	}

	if room.Locked {
		return ErrRoomLocked
	}

	room.Members = append(room.Members, uid)
	return nil
}

// MemberSnapshot 取得成員列表的時間點快照
//
// 回傳的切片是複本，與房間後續的變更完全隔離。
func (room *Room) MemberSnapshot() (members []string, host string, locked bool) {
	room.Mu.RLock()
	defer room.Mu.RUnlock()

	members = make([]string, len(room.Members))
	copy(members, room.Members)
	return members, room.Host, room.Locked
}

// MemberCount 獲取成員數量
func (room *Room) MemberCount() int {
	room.Mu.RLock()
	defer room.Mu.RUnlock()
	return len(room.Members)
}

// RoomRegistry 房間 ID 到房間狀態的映射
type RoomRegistry struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewRoomRegistry 創建房間註冊表
func NewRoomRegistry(logger *slog.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[string]*Room),
		logger: logger,
	}
}

// Create 建立房間，房主自動成為首位成員
//
// 唯一性保證：存在性檢查與插入在註冊表鎖內完成，
// 同 ID 的並發建立只有一個成功，已註冊的房間不會被覆蓋。
func (r *RoomRegistry) Create(roomID, host string) error {
	if !ValidRoomID(roomID) {
		return ErrRoomIDInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[roomID]; exists {
		return ErrRoomExists
	}

	r.rooms[roomID] = &Room{
		ID:        roomID,
		Members:   []string{host},
		Host:      host,
		Locked:    false,
		CreatedAt: time.Now(),
	}

	r.logger.Info("房間已建立", "room_id", roomID, "host", host)
	return nil
}

// Join 加入房間
//
// 前置條件鏈（首個失敗者勝出）：
//   - ID 文法不合 → ErrRoomIDInvalid
//   - 房間未註冊 → ErrRoomNotFound
//   - 已是成員 → ErrAlreadyMember
//   - 房間已鎖定 → ErrRoomLocked
func (r *RoomRegistry) Join(roomID, uid string) error {
	if !ValidRoomID(roomID) {
		return ErrRoomIDInvalid
	}

	room, err := r.Get(roomID)
	if err != nil {
		return err
	}

	if err := room.addMember(uid); err != nil {
		return err
	}

	r.logger.Info("成員加入房間", "room_id", roomID, "uid", uid)
	return nil
}

// Get 獲取房間
func (r *RoomRegistry) Get(roomID string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// SetLocked 設定鎖定旗標
//
// 營運端掛鉤：線上協定沒有修改鎖定的指令，join 只負責遵守它。
func (r *RoomRegistry) SetLocked(roomID string, locked bool) error {
	room, err := r.Get(roomID)
	if err != nil {
		return err
	}

	room.Mu.Lock()
	room.Locked = locked
	room.Mu.Unlock()

	r.logger.Info("房間鎖定狀態變更", "room_id", roomID, "locked", locked)
	return nil
}

// Count 獲取房間數量
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Stats 獲取統計資訊
func (r *RoomRegistry) Stats() map[string]any {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	lockedCount := 0
	totalMembers := 0
	for _, room := range rooms {
		_, _, locked := room.MemberSnapshot()
		if locked {
			lockedCount++
		}
		totalMembers += room.MemberCount()
	}

	return map[string]any{
		"total_rooms":   len(rooms),
		"locked_rooms":  lockedCount,
		"total_members": totalMembers,
	}
}

// Summaries 列出房間摘要（管理介面用，唯讀）
func (r *RoomRegistry) Summaries() []map[string]any {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	result := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		members, host, locked := room.MemberSnapshot()
		result = append(result, map[string]any{
			"room_id":      room.ID,
			"member_count": len(members),
			"host":         host,
			"locked":       locked,
			"created_at":   room.CreatedAt,
		})
	}
	return result
}
