// Package main provides a program writing a randomly initialised backbone
// checkpoint, usable as --weights of train_transfer where no pretrained
// checkpoint is at hand.
package main
