// Package intake owns the capture trigger: a brightness-edge detector
// and the IDLE → PROCESSING → SUCCESS → COOLDOWN state machine that
// guarantees exactly one capture per physical sheet insertion.
//
// The machine runs a single cooperative poll loop. Frames are read
// sequentially, never concurrently, so the detector baseline and the
// machine state need no locking. Processing of a captured sheet is a
// blocking call made from inside the loop; a new sheet cannot trigger
// until the previous sheet's processing and the cooldown both complete.
package intake
