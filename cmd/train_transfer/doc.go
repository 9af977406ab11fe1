// Package main provides the transfer learning trainer. It loads a backbone
// checkpoint, replaces its classifier head with one sized to the given labels
// and trains that head on an image folder dataset, saving the best model seen
// on the validation split.
package main
