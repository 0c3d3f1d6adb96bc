package verification

import (
	"crypto/sha256"
	"encoding/hex"
)

// ExtractedDocument is what document analysis read off the uploaded ID.
type ExtractedDocument struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	FullName       string `json:"full_name"`
	DateOfBirth    string `json:"date_of_birth"`
	Nationality    string `json:"nationality,omitempty"`
	ExpiryDate     string `json:"expiry_date,omitempty"`
}

// IdentityResult is the identity stage blob.
type IdentityResult struct {
	Verified   bool              `json:"verified"`
	Reason     string            `json:"reason,omitempty"`
	Document   ExtractedDocument `json:"document"`
	MatchScore float64           `json:"match_score,omitempty"`
	// DocumentDigest identifies the exact document bytes that were checked.
	DocumentDigest string `json:"document_digest,omitempty"`
	// ProviderFailure is true when the negative answer came from an
	// unavailable provider rather than a rejection.
	ProviderFailure bool `json:"provider_failure,omitempty"`
	Simulated       bool `json:"simulated,omitempty"`
}

// DigestOf is the hex SHA-256 of an uploaded artifact.
func DigestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FaceQuality is the detection result for the selfie.
type FaceQuality struct {
	FacePresent bool    `json:"face_present"`
	Confidence  float64 `json:"confidence"`
	Sharpness   float64 `json:"sharpness"`
	Brightness  float64 `json:"brightness"`
}

// BiometricResult is the biometric stage blob.
type BiometricResult struct {
	Verified        bool        `json:"verified"`
	Reason          string      `json:"reason,omitempty"`
	Quality         FaceQuality `json:"quality"`
	Similarity      float64     `json:"similarity"`
	Live            *bool       `json:"live,omitempty"`
	ProviderFailure bool        `json:"provider_failure,omitempty"`
	Simulated       bool        `json:"simulated,omitempty"`
}

// BiometricThresholds are the acceptance limits, on a 0-100 scale.
type BiometricThresholds struct {
	MinSimilarity     float64
	MinFaceConfidence float64
	MinSharpness      float64
	MinBrightness     float64
	RequireLiveness   bool
}

func DefaultBiometricThresholds() BiometricThresholds {
	return BiometricThresholds{
		MinSimilarity:     90,
		MinFaceConfidence: 90,
		MinSharpness:      40,
		MinBrightness:     30,
	}
}
