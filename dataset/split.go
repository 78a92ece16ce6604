package dataset

import (
	"errors"
	"math"
	"math/rand"
)

// StratifiedSplit partitions records into train and test sets so both keep
// the original class ratio. Deterministic for a fixed seed.
func StratifiedSplit(records []Record, labels []int, testRatio float64, seed int64) (trainX []Record, trainY []int, testX []Record, testY []int, err error) {
	if len(records) == 0 {
		return nil, nil, nil, nil, errors.New("records is empty")
	}
	if len(records) != len(labels) {
		return nil, nil, nil, nil, errors.New("records and labels size mismatch")
	}
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	rnd := rand.New(rand.NewSource(seed))
	// Fixed class order keeps the shuffle sequence reproducible.
	for _, class := range []int{LabelGood, LabelBad} {
		indices := byClass[class]
		rnd.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		nTest := int(math.Round(float64(len(indices)) * testRatio))
		if nTest == 0 && len(indices) > 1 {
			nTest = 1
		}
		for i, idx := range indices {
			if i < nTest {
				testX = append(testX, records[idx])
				testY = append(testY, labels[idx])
			} else {
				trainX = append(trainX, records[idx])
				trainY = append(trainY, labels[idx])
			}
		}
	}
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, nil, nil, nil, errors.New("split produced an empty partition")
	}
	return trainX, trainY, testX, testY, nil
}
