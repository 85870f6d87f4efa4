package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
)

// 系統設計問題：
//   如何把「解碼後的指令 + 連接身份」轉換成一致的註冊表變更與回應？
//
// 協定狀態機（狀態隱含在儲存欄位中，沒有顯式列舉）：
//
//	{未識別} → id → {已識別，無房間} → cr/jn → {已識別，在房間}
//
// 設計方案：
//   ✅ 兩階段驗證 - 通用欄位存在性檢查，之後才是指令語義檢查
//   ✅ 哨兵錯誤映射 - 註冊表錯誤經 errors.Is 映射到協定代碼
//   ✅ 全有或全無 - 任何前置條件失敗都不產生狀態變更

// 指令
const (
	CmdID     = "id"  // 請求身份令牌
	CmdName   = "nm"  // 設定顯示名稱
	CmdCreate = "cr"  // 建立房間
	CmdJoin   = "jn"  // 加入房間
	CmdList   = "ls"  // 成員列表
	CmdErr    = "err" // 通用錯誤回應（僅伺服器 → 客戶端）
)

// 回應代碼，依指令分區段：err 00-09、id 10-19、cr 20-29、ls 30-39、jn 40-49、nm 50-59
const (
	CodeUserNotFound = 1 // uid 缺失或未知
	CodeRoomMissing  = 2 // rid 缺失，或使用者沒有目前房間

	CodeIDOK = 10

	CodeCreateOK        = 20
	CodeCreateInvalidID = 21
	CodeCreateExists    = 22

	CodeListOK = 30

	CodeJoinOK            = 40
	CodeJoinInvalidID     = 41
	CodeJoinNotFound      = 42
	CodeJoinAlreadyMember = 43
	CodeJoinLocked        = 44

	CodeNameOK        = 50
	CodeNameMissing   = 51
	CodeNameUnchanged = 52
)

// 客戶端可見錯誤訊息（線上契約的一部分）
const (
	msgUserNotFound  = `UserID is not found. Use "id" command to get your userID.`
	msgRoomMissing   = "RoomID is not specified or invalid."
	msgRoomIDInvalid = "Invalid RoomID"
	msgRoomExists    = `This roomID is already in use. Use "jn" command to request to join`
	msgRoomNotFound  = "No room found"
	msgAlreadyMember = "Already in room"
	msgRoomLocked    = "This room is locked ATM"
	msgNameMissing   = "Name field is not specified"
	msgNameUnchanged = "Your current name is already the same"
)

// Request 客戶端請求信封；cmd 為必填，其餘欄位依指令而定
type Request struct {
	Cmd  string `json:"cmd"`
	UID  string `json:"uid,omitempty"`
	RID  string `json:"rid,omitempty"`
	Name string `json:"name,omitempty"`
}

// Response 伺服器回應信封
//
// Timestamp（epoch 毫秒）由傳輸層在送出前補上，路由器不負責。
type Response struct {
	Cmd       string      `json:"cmd"`
	Code      int         `json:"code"`
	Msg       string      `json:"msg,omitempty"`
	UID       string      `json:"uid,omitempty"`
	Data      *MemberList `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// MemberList ls 指令的回應資料：成員依角色分組，維持加入順序
//
// 房主由 host 欄位表示；角色為 host 的成員不重複列在分組陣列中。
type MemberList struct {
	Spec       []string              `json:"spec"`
	Player     []string              `json:"player"`
	Host       string                `json:"host"`
	PlayerInfo map[string]PlayerInfo `json:"playerInfo"`
}

// PlayerInfo 成員附帶資訊
type PlayerInfo struct {
	Name string `json:"name"`
}

// SessionRouter 協定狀態機：驗證前置條件、變更註冊表、產生回應
//
// SessionRouter 是兩個註冊表唯一的寫入者；讀取端（ls）透過
// 快照取得一致的時間點視圖。
type SessionRouter struct {
	users  *UserRegistry
	rooms  *RoomRegistry
	logger *slog.Logger
}

// NewSessionRouter 創建協定路由器
func NewSessionRouter(users *UserRegistry, rooms *RoomRegistry, logger *slog.Logger) *SessionRouter {
	return &SessionRouter{
		users:  users,
		rooms:  rooms,
		logger: logger,
	}
}

// Handle 處理一則已接收的原始訊息
//
// token 是連接建立時推導的身份令牌，只有 id 指令使用它；
// 其餘指令認的是請求攜帶的 uid 欄位。
//
// 回傳 nil 代表不回應（無法解碼、缺少 cmd、未知指令——僅本地診斷，
// 連接保持開啟）。所有失敗都是逐訊息的，不變更任何共享狀態。
func (s *SessionRouter) Handle(token string, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Warn("無法解析客戶端請求", "error", err, "payload", string(raw))
		return nil
	}
	if req.Cmd == "" {
		s.logger.Warn("客戶端請求缺少 cmd 欄位", "payload", string(raw))
		return nil
	}

	// id 不需要任何前置條件：以連接推導的令牌惰性建立（或取回）身份
	if req.Cmd == CmdID {
		user := s.users.Ensure(token)
		return &Response{Cmd: CmdID, Code: CodeIDOK, UID: user.UID}
	}

	// 全域前置條件：請求必須攜帶一個先前由 id 核發的 uid
	user, err := s.users.Get(req.UID)
	if err != nil {
		return &Response{Cmd: CmdErr, Code: CodeUserNotFound, Msg: msgUserNotFound}
	}

	switch req.Cmd {
	case CmdName:
		return s.handleName(req)
	case CmdCreate:
		return s.handleCreate(req)
	case CmdJoin:
		return s.handleJoin(req)
	case CmdList:
		return s.handleList(user)
	default:
		// 未知指令：不回應，僅本地診斷
		s.logger.Debug("收到未知指令", "cmd", req.Cmd, "uid", req.UID)
		return nil
	}
}

// handleName 設定顯示名稱
func (s *SessionRouter) handleName(req Request) *Response {
	err := s.users.SetName(req.UID, req.Name)
	switch {
	case errors.Is(err, ErrNameMissing):
		return &Response{Cmd: CmdName, Code: CodeNameMissing, Msg: msgNameMissing}
	case errors.Is(err, ErrNameUnchanged):
		return &Response{Cmd: CmdName, Code: CodeNameUnchanged, Msg: msgNameUnchanged}
	case err != nil:
		// uid 已通過全域前置條件且使用者不會被刪除，理論上到不了這裡
		return &Response{Cmd: CmdErr, Code: CodeUserNotFound, Msg: msgUserNotFound}
	}
	return &Response{Cmd: CmdName, Code: CodeNameOK}
}

// handleCreate 建立房間
func (s *SessionRouter) handleCreate(req Request) *Response {
	// 共用前置條件：rid 必須存在；文法細節留給指令語義檢查（代碼 21）
	if req.RID == "" {
		return s.roomMissing()
	}

	err := s.rooms.Create(req.RID, req.UID)
	switch {
	case errors.Is(err, ErrRoomIDInvalid):
		return &Response{Cmd: CmdCreate, Code: CodeCreateInvalidID, Msg: msgRoomIDInvalid}
	case errors.Is(err, ErrRoomExists):
		return &Response{Cmd: CmdCreate, Code: CodeCreateExists, Msg: msgRoomExists}
	}

	// 房主是首位成員，記錄其目前房間（角色維持預設的觀戰者）
	if err := s.users.SetRoomAndRole(req.UID, req.RID, RoleSpectator); err != nil {
		s.logger.Error("記錄房主房間失敗", "error", err, "uid", req.UID, "room_id", req.RID)
	}

	return &Response{Cmd: CmdCreate, Code: CodeCreateOK}
}

// handleJoin 加入房間
func (s *SessionRouter) handleJoin(req Request) *Response {
	// 共用前置條件：rid 必須存在
	if req.RID == "" {
		return s.roomMissing()
	}

	err := s.rooms.Join(req.RID, req.UID)
	switch {
	case errors.Is(err, ErrRoomIDInvalid):
		return &Response{Cmd: CmdJoin, Code: CodeJoinInvalidID, Msg: msgRoomIDInvalid}
	case errors.Is(err, ErrRoomNotFound):
		return &Response{Cmd: CmdJoin, Code: CodeJoinNotFound, Msg: msgRoomNotFound}
	case errors.Is(err, ErrAlreadyMember):
		return &Response{Cmd: CmdJoin, Code: CodeJoinAlreadyMember, Msg: msgAlreadyMember}
	case errors.Is(err, ErrRoomLocked):
		return &Response{Cmd: CmdJoin, Code: CodeJoinLocked, Msg: msgRoomLocked}
	}

	// 房間端檢查通過後才變更使用者端：加入者預設為觀戰者
	if err := s.users.SetRoomAndRole(req.UID, req.RID, RoleSpectator); err != nil {
		s.logger.Error("記錄成員房間失敗", "error", err, "uid", req.UID, "room_id", req.RID)
	}

	return &Response{Cmd: CmdJoin, Code: CodeJoinOK}
}

// handleList 成員列表：以使用者目前所在房間為準，依角色分組
func (s *SessionRouter) handleList(user User) *Response {
	// 共用前置條件：使用者必須有目前房間
	if user.Room == "" {
		return s.roomMissing()
	}

	room, err := s.rooms.Get(user.Room)
	if err != nil {
		// 房間不會被刪除，理論上到不了這裡
		s.logger.Error("使用者指向的房間不存在", "uid", user.UID, "room_id", user.Room)
		return s.roomMissing()
	}

	members, host, _ := room.MemberSnapshot()

	data := &MemberList{
		Spec:       []string{},
		Player:     []string{},
		Host:       host,
		PlayerInfo: make(map[string]PlayerInfo, len(members)),
	}

	for _, uid := range members {
		member, err := s.users.Get(uid)
		if err != nil {
			// 成員一定先經過 id 註冊，正常情況下必然存在
			s.logger.Error("房間成員沒有對應的使用者", "uid", uid, "room_id", user.Room)
			continue
		}

		switch member.Role {
		case RolePlayer:
			data.Player = append(data.Player, uid)
		case RoleHost:
			// 房主由 host 欄位表示，不重複列在分組中
		default:
			data.Spec = append(data.Spec, uid)
		}
		data.PlayerInfo[uid] = PlayerInfo{Name: member.Name}
	}

	return &Response{Cmd: CmdList, Code: CodeListOK, Data: data}
}

// roomMissing 共用的房間前置條件錯誤回應
func (s *SessionRouter) roomMissing() *Response {
	return &Response{Cmd: CmdErr, Code: CodeRoomMissing, Msg: msgRoomMissing}
}
