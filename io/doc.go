// Package io provides the on-chip peripherals of a simulated device: GPIO
// ports, external interrupts, timer/counters, USARTs and the watchdog.
//
// Peripherals see the device through a Bus, and are clocked once per CPU
// cycle unless the current sleep mode stops their clock.
package io
