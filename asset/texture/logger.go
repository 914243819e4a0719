package texture

import "github.com/achilleasa/wavetrace/log"

var logger = log.New("texture loader")
