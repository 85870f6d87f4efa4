// Package mafiozzy 提供了一個極簡的即時會話仲介服務器。
//
// 客戶端透過持久的 WebSocket 通道連接，取得身份令牌，建立或加入
// 具名房間，並查詢房間成員與角色。核心是「連接 → 身份 → 房間」的
// 狀態機，包含以下功能：
//
// 身份解析
//
// 從連接標頭確定性地推導穩定身份：
//   - Origin + User-Agent 經單向雜湊截斷為 16 字元令牌
//   - 相同來源永遠得到相同令牌（碰撞風險明確接受）
//   - 這是識別捷徑，不是安全憑證
//
// 房間管理
//
// 提供房間的建立、加入與成員查詢：
//   - 房間 ID 唯一性（同名並發建立只有一個成功）
//   - 冪等加入守衛（重複加入被拒絕）
//   - 鎖定旗標阻擋新成員
//   - 成員列表依加入順序、依角色分組
//
// # 線上協定
//
// JSON over WebSocket，指令與回應代碼區段：
//   - err: 00-09（通用錯誤）
//   - id:  10-19（請求身份令牌）
//   - cr:  20-29（建立房間）
//   - ls:  30-39（成員列表）
//   - jn:  40-49（加入房間）
//   - nm:  50-59（設定名稱）
//
// 併發安全設計
//
// 採用多層次的併發控制策略：
//   - 註冊表層級 RWMutex 保護身份與房間映射
//   - 房間層級 RWMutex 序列化同房間的變更
//   - 成員查詢取得時間點快照（不見部分更新）
//   - 緩衝 channel 非同步發送回應
//
// 使用範例
//
// 啟動服務器：
//
//	users := internal.NewUserRegistry(logger)
//	rooms := internal.NewRoomRegistry(logger)
//	router := internal.NewSessionRouter(users, rooms, logger)
//	hub := internal.NewHub(router, logger, cfg.Heartbeat)
//
//	http.HandleFunc("/ws", hub.ServeWS)
//	log.Fatal(http.ListenAndServe(":6001", nil))
//
// 客戶端流程：
//
//	ws 連接 → {"cmd":"id"} → {"cmd":"id","code":10,"uid":"..."}
//	        → {"cmd":"cr","uid":"...","rid":"room1"} → {"cmd":"cr","code":20}
//
// 配置選項
//
// 支援多種運行時配置：
//   - -config：yaml 配置檔案路徑
//   - -port：服務監聽端口（預設 6001）
//   - -log-level：日誌級別（debug/info/warn/error）
//   - -log-format：日誌格式（text/json）
//
// 已知限制
//
// 刻意保留的範圍邊界：
//   - 狀態不跨進程重啟持久化
//   - 同一身份可被多條連接同時綁定（無衝突解決）
//   - 沒有離開房間或房間解散操作
package mafiozzy
