// Package frame abstracts raw frame acquisition for the intake loop.
//
// The capture hardware itself is an external collaborator; this package
// defines the pull-based Source contract the state machine polls, plus a
// directory-backed replay source used for bench setups and tests, and a
// small decoded-image cache shared by the replay source and the CLI.
package frame
