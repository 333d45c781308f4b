package utils

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gorm.io/gorm"
)

var idMu sync.Mutex
var idRand *rand.Rand

func init() {
	idRand = rand.New(rand.NewSource(time.Now().UnixNano()))
}

// randomIdentifier returns a 6 digit handle with a non-zero first digit.
func randomIdentifier() string {
	idMu.Lock()
	defer idMu.Unlock()
	return fmt.Sprintf("%d%05d", idRand.Intn(9)+1, idRand.Intn(100000))
}

// GenerateUniqueIdentifier produces a 6 digit user identifier that does not
// collide with an existing row. Gives up after a bounded number of attempts
// rather than spinning forever on a nearly full keyspace.
func GenerateUniqueIdentifier(db *gorm.DB) (string, error) {
	for attempt := 0; attempt < 50; attempt++ {
		id := randomIdentifier()
		var count int64
		if err := db.Table("users").Where("identifier = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", errors.New("could not allocate a unique identifier")
}
