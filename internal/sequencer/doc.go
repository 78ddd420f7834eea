// Package sequencer implements the reset-resumable escalation test body.
//
// A single test spans several boot lifetimes of the same chip. Nothing in
// memory survives the resets under test, so the only record of progress is
// the reset-info register. Each boot classifies that register once and plays
// one of two roles:
//
//   - Power-on boot: configure the alert escalation pipeline, advance the key
//     manager, arm the NMI path and force the alert, then suspend waiting for
//     the interrupt. The chip is expected to reset before the wait returns; if
//     it does return, the boot fails.
//   - Escalation boot: report that the reset was caused by the escalation and
//     pass.
//
// Any other cause fails the boot with the raw reset info in the log.
//
// Progress is reported to the harness only through console markers (see
// package console). Life-cycle escalation, the middle escalation phase, is
// never observed here; the harness checks it directly.
//
// # Usage
//
//	seq := sequencer.New(sequencer.DefaultConfig())
//	pass := seq.Run(ctx, boot)
//
// The Boot value is built fresh for every lifetime and must not be reused.
package sequencer
