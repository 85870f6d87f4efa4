package internal

import (
	"errors"
	"log/slog"
	"sync"
)

// Role 成員角色，決定成員列表的分組方式
type Role string

const (
	RoleSpectator Role = "spec"   // 觀戰者（預設）
	RolePlayer    Role = "player" // 玩家
	RoleHost      Role = "host"   // 房主（由房間的 host 欄位表示，不列在分組中）
)

// 使用者註冊表錯誤
var (
	ErrUserNotFound  = errors.New("使用者不存在")
	ErrNameMissing   = errors.New("名稱未指定")
	ErrNameUnchanged = errors.New("名稱與目前相同")
)

// User 一個已推導身份的伺服器端狀態
//
// 生命週期：首次 id 請求時惰性建立，之後不會被刪除（進程生命週期）。
// 多條連接可能解析到同一個 User 並同時操作它——這是明確接受的
// 限制，註冊表鎖只保證映射一致，不做衝突解決。
type User struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	Room string `json:"room,omitempty"` // 目前所在房間 ID，空字串代表尚未加入
	Role Role   `json:"role"`
}

// UserRegistry 身份令牌到使用者狀態的映射
//
// 系統設計考量：
//   - 顯式註冊表物件取代全域可變 map（可注入、可測試、可獨立上鎖）
//   - RWMutex：查詢（讀多）與變更（寫少）分離
//   - 讀取操作一律回傳值複本（時間點快照），呼叫端不會看到半更新狀態
type UserRegistry struct {
	users  map[string]*User
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewUserRegistry 創建使用者註冊表
func NewUserRegistry(logger *slog.Logger) *UserRegistry {
	return &UserRegistry{
		users:  make(map[string]*User),
		logger: logger,
	}
}

// Ensure 確保令牌對應的使用者存在並回傳其快照（冪等，永不失敗）
//
// 同一令牌重複呼叫回傳同一個使用者的狀態，不會產生第二個實例。
func (r *UserRegistry) Ensure(token string) User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[token]
	if !exists {
		u = &User{UID: token, Role: RoleSpectator}
		r.users[token] = u
		r.logger.Info("使用者已建立", "uid", token)
	}
	return *u
}

// Get 查詢使用者快照；令牌從未經 Ensure 註冊時回傳 ErrUserNotFound
func (r *UserRegistry) Get(token string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.users[token]
	if !exists {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// SetName 設定顯示名稱
//
// 前置條件鏈（首個失敗者勝出）：
//   - 名稱為空 → ErrNameMissing
//   - 使用者不存在 → ErrUserNotFound
//   - 名稱與目前相同 → ErrNameUnchanged（可恢復的使用者可見狀況，非硬錯誤）
func (r *UserRegistry) SetName(token, name string) error {
	if name == "" {
		return ErrNameMissing
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[token]
	if !exists {
		return ErrUserNotFound
	}
	if u.Name == name {
		return ErrNameUnchanged
	}

	u.Name = name
	return nil
}

// SetRoomAndRole 記錄使用者目前所在的房間與角色
//
// 內部變更器：只由 SessionRouter 在房間端檢查通過後呼叫。
func (r *UserRegistry) SetRoomAndRole(token, roomID string, role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[token]
	if !exists {
		return ErrUserNotFound
	}

	u.Room = roomID
	u.Role = role
	return nil
}

// Count 獲取使用者數量
func (r *UserRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Stats 獲取統計資訊
func (r *UserRegistry) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roleCount := make(map[Role]int)
	inRoom := 0
	for _, u := range r.users {
		roleCount[u.Role]++
		if u.Room != "" {
			inRoom++
		}
	}

	return map[string]any{
		"total_users": len(r.users),
		"in_room":     inRoom,
		"by_role":     roleCount,
	}
}
