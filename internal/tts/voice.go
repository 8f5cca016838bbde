package tts

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Voice settings bounds
const (
	MinSpeed  = 0.5
	MaxSpeed  = 2.0
	MinVolume = 0.1
	MaxVolume = 2.0
	MinPitch  = -12
	MaxPitch  = 12
)

// VoiceConfig selects a voice and its delivery for one job
type VoiceConfig struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Volume  float64 `json:"volume"`
	Pitch   int     `json:"pitch"`
}

// Clamp limits every setting to the range the backends accept. A zero
// speed or volume means "normal".
func (v VoiceConfig) Clamp() VoiceConfig {
	if v.Speed == 0 {
		v.Speed = 1.0
	}
	if v.Volume == 0 {
		v.Volume = 1.0
	}
	v.Speed = clampFloat(v.Speed, MinSpeed, MaxSpeed)
	v.Volume = clampFloat(v.Volume, MinVolume, MaxVolume)
	v.Pitch = max(MinPitch, min(MaxPitch, v.Pitch))
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// Voice describes one entry of the voice catalogue
type Voice struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Language    string `json:"language" yaml:"language"`
}

// Voices lists the MiniMax voices offered to clients
var Voices = []Voice{
	{ID: "female-qn-qingse", Name: "Qingse (female)", Description: "Clear female voice", Language: "zh-CN"},
	{ID: "male-qn-qingse", Name: "Qingse (male)", Description: "Clear male voice", Language: "zh-CN"},
	{ID: "female-shaonv", Name: "Shaonv", Description: "Young female voice", Language: "zh-CN"},
	{ID: "male-youthful", Name: "Youthful", Description: "Youthful male voice", Language: "zh-CN"},
}

// LookupVoice finds a catalogue entry by ID
func LookupVoice(id string) (Voice, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

type voiceFile struct {
	Voices []Voice `yaml:"voices"`
}

// LoadVoices reads a voice catalogue from a YAML file of the form
//
//	voices:
//	  - id: female-qn-qingse
//	    name: Qingse (female)
//
// An empty path returns the built-in catalogue.
func LoadVoices(path string) ([]Voice, error) {
	if path == "" {
		return Voices, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voices file: %w", err)
	}

	var file voiceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse voices file: %w", err)
	}
	if len(file.Voices) == 0 {
		return nil, errors.New("voices file lists no voices")
	}
	seen := make(map[string]bool, len(file.Voices))
	for i, v := range file.Voices {
		if v.ID == "" {
			return nil, fmt.Errorf("voice %d has no id", i)
		}
		if seen[v.ID] {
			return nil, fmt.Errorf("duplicate voice id %q", v.ID)
		}
		seen[v.ID] = true
	}
	return file.Voices, nil
}
