// Package trainer provides the training orchestration for transfer learning.
// It runs the epoch loop over a frozen backbone, updates the classifier head
// and checkpoints the model whenever validation accuracy improves.
package trainer
