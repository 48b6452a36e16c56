// Package rooms generates memorable room names like "otter-ramen-ember-jolly".
package rooms

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	wordsPerName = 4
	maxAttempts  = 32
)

var wordLists = [][]string{
	{
		"otter", "panda", "koala", "fox", "hedgehog", "beaver", "narwhal", "penguin", "heron", "lynx",
		"badger", "gecko", "walrus", "puffin", "marmot", "alpaca", "falcon", "orca", "tapir", "wombat",
	},
	{
		"ramen", "taco", "waffle", "curry", "dumpling", "falafel", "paella", "pierogi", "samosa", "risotto",
		"bagel", "gnocchi", "mochi", "churro", "kebab", "pretzel", "tamale", "crepe", "gumbo", "latte",
	},
	{
		"ember", "pixel", "maple", "cocoa", "willow", "meadow", "breeze", "marble", "sprout", "biscuit",
		"comet", "nebula", "pebble", "lantern", "harbor", "thistle", "canyon", "quartz", "glacier", "cinder",
	},
	{
		"jolly", "cozy", "brave", "calm", "swift", "sleepy", "plucky", "merry", "fuzzy", "gentle",
		"bright", "silver", "crimson", "quiet", "bouncy", "shiny", "lucky", "clever", "breezy", "sunny",
	},
	{
		"signal", "socket", "packet", "beacon", "relay", "circuit", "radio", "modem", "antenna", "channel",
		"router", "switch", "cable", "frame", "stream", "carrier", "uplink", "ping", "echo", "handshake",
	},
}

// Generate returns a random name not reported as taken. taken may be nil.
func Generate(taken func(string) bool) (string, error) {
	for range maxAttempts {
		name, err := randomName()
		if err != nil {
			return "", err
		}
		if taken == nil || !taken(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free room name after %d attempts", maxAttempts)
}

// randomName picks one word from each of wordsPerName distinct lists.
func randomName() (string, error) {
	order := make([]int, len(wordLists))
	for i := range order {
		order[i] = i
	}
	// partial Fisher-Yates over the list indexes
	for i := range wordsPerName {
		j, err := randomIndex(len(order) - i)
		if err != nil {
			return "", err
		}
		order[i], order[i+j] = order[i+j], order[i]
	}

	words := make([]string, wordsPerName)
	for i := range words {
		list := wordLists[order[i]]
		k, err := randomIndex(len(list))
		if err != nil {
			return "", err
		}
		words[i] = list[k]
	}
	return strings.Join(words, "-"), nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random index: %w", err)
	}
	return int(v.Int64()), nil
}
