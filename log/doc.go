// Package log provides the leveled logger used across the playground.
//
// Components take a Logger through their options and fall back to the
// package-level logger, which writes through kataras/golog with a
// "[playground] " prefix. The CLI adjusts it once at startup:
//
//	level, err := log.ParseLevel("debug")
//	if err != nil {
//		return err
//	}
//	log.SetLogLevel(level)
//
// Use NoOpLogger to silence a component entirely, or NewCustomLogger to send
// output somewhere other than stderr.
package log
