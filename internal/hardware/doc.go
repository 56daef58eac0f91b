// Package hardware drives the Raspberry Pi peripherals of the cave: SHT3x
// probes on I2C, the humidifier control line and the two menu buttons on
// GPIO. The emulated devices in cave.go stand in for all of them.
package hardware
