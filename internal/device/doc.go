// Package device simulates the chip the escalation test runs on.
//
// The simulation covers exactly the hardware the test touches: the reset
// manager's reset-info register, the key manager, the alert handler's
// escalation pipeline and the CPU's NMI input. Everything else is out of
// scope.
//
// # Boot lifetimes
//
// Chip.Boot runs one lifetime of the firmware on its own goroutine. When the
// alert escalation reaches its final phase the chip resets: the reset-info
// register latches the escalation bit, volatile state is cleared, and the
// boot goroutine is terminated with runtime.Goexit from inside the interrupt
// wait. Deferred calls run, but the test body never returns. Boot reports
// this as ResultReset.
//
// # Escalation phases
//
// A forced alert on a configured class escalates through:
//
//  0. NMI to the CPU (if enabled for the alert source)
//  1. Life-cycle escalation (recorded as a hardware event only)
//  2. Chip reset
//
// Faults can suppress the reset or the NMI to simulate broken hardware.
package device
