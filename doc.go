// Package compactor implements context compaction for long-running chat
// sessions: when a conversation's token footprint approaches the model's
// context window, the engine summarizes the older part of the history into a
// structured snapshot and keeps the recent part verbatim.
//
// The entry point is Engine.TryCompress. Each call evaluates trigger
// conditions (token thresholds, a context-utilization safety valve, and
// frequency guards), optionally asks the user which goal the summary should
// preserve, picks a split point, generates the snapshot, and swaps in the
// reconstructed history only after verifying the result is actually smaller
// than what it replaced.
//
// Basic usage:
//
//	engine, err := compactor.NewEngine(compactor.EngineParams{
//		Config:       compactor.DefaultConfig(),
//		Conversation: conv,
//		Client:       &client,
//		Prompter:     prompter,
//		Settings:     compactor.NewFileSettingsStore(path),
//	})
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	result, err := engine.TryCompress(ctx, promptID, false, nil)
//
// All state the engine keeps between attempts lives in the per-session
// Guard; nothing about compaction itself is persisted. User preferences
// (opt-out, relaxed thresholds) persist through the optional SettingsStore.
package compactor
