package collector

// simulatedStatus is the on-battery snapshot substituted for the daemon
// fetch while simulation is enabled. Field values are taken from a real
// Smart-UPS 3000 XL transfer. It flows through normalization and the
// event detector exactly like a daemon-reported status; disabling
// simulation lets the next real status close the event.
func simulatedStatus() map[string]string {
	return map[string]string{
		"STATUS":   "ONBATT",
		"LOADPCT":  "25.0 Percent",
		"BCHARGE":  "85.0 Percent",
		"TIMELEFT": "45.0 Minutes",
		"LINEV":    "0.0 Volts",
		"OUTPUTV":  "121.6 Volts",
		"LINEFREQ": "0.0 Hz",
		"ITEMP":    "22.5 C",
		"BATTV":    "54.2 Volts",
		"LASTXFER": "Low line voltage",
		"MODEL":    "Smart-UPS 3000 XL",
	}
}
