package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"onboard/internal/gateway/providers"
	"onboard/internal/objectstore"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
)

// BiometricVerifier matches the selfie against the identity document photo.
type BiometricVerifier struct {
	gateway    ProviderGateway
	objects    ObjectReader
	thresholds BiometricThresholds
	logger     *slog.Logger
}

type BiometricOption func(*BiometricVerifier)

func WithBiometricLogger(logger *slog.Logger) BiometricOption {
	return func(v *BiometricVerifier) { v.logger = logger }
}

func WithThresholds(t BiometricThresholds) BiometricOption {
	return func(v *BiometricVerifier) { v.thresholds = t }
}

func NewBiometricVerifier(gw ProviderGateway, objects ObjectReader, opts ...BiometricOption) *BiometricVerifier {
	v := &BiometricVerifier{
		gateway:    gw,
		objects:    objects,
		thresholds: DefaultBiometricThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *BiometricVerifier) load(ctx context.Context, processID domain.ProcessID, purpose objectstore.Purpose) ([]byte, error) {
	data, err := v.objects.Get(ctx, processID, purpose)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, fmt.Sprintf("%s not uploaded", purpose))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to read %s", purpose))
	}
	return data, nil
}

// Verify checks selfie quality, face similarity and, when required, liveness.
// A non-empty documentDigest must match the stored identity document; a
// document replaced after identity verification fails the stage.
func (v *BiometricVerifier) Verify(ctx context.Context, processID domain.ProcessID, documentDigest string) (*BiometricResult, error) {
	selfie, err := v.load(ctx, processID, objectstore.PurposeSelfie)
	if err != nil {
		return nil, err
	}
	document, err := v.load(ctx, processID, objectstore.PurposeIDDocument)
	if err != nil {
		return nil, err
	}

	result := &BiometricResult{}
	if documentDigest != "" && DigestOf(document) != documentDigest {
		v.logger.WarnContext(ctx, "identity document changed after identity verification", "process_id", processID.String())
		result.Reason = "identity document changed after identity verification"
		return result, nil
	}

	detect := v.gateway.Call(ctx, providers.IDFace, providers.Request{
		Operation: "detect",
		ProcessID: processID,
		Blobs:     map[string][]byte{"image": selfie},
	})
	result.Simulated = detect.Simulated
	if n := negative(detect, "face detection failed"); n != nil {
		result.Reason, result.ProviderFailure = n.reason, n.providerFailure
		return result, nil
	}
	if err := detect.Decode(&result.Quality); err != nil {
		result.Reason = "face detection returned unreadable metrics"
		return result, nil
	}
	if reason := v.checkQuality(result.Quality); reason != "" {
		v.logger.InfoContext(ctx, "selfie rejected", "process_id", processID.String(), "reason", reason)
		result.Reason = reason
		return result, nil
	}

	compare := v.gateway.Call(ctx, providers.IDFace, providers.Request{
		Operation: "compare",
		ProcessID: processID,
		Blobs:     map[string][]byte{"source": document, "target": selfie},
	})
	result.Simulated = result.Simulated || compare.Simulated
	if n := negative(compare, "face comparison failed"); n != nil {
		result.Reason, result.ProviderFailure = n.reason, n.providerFailure
		return result, nil
	}
	var cmp struct {
		Similarity float64 `json:"similarity"`
	}
	if err := compare.Decode(&cmp); err != nil {
		result.Reason = "face comparison returned unreadable score"
		return result, nil
	}
	result.Similarity = cmp.Similarity
	if cmp.Similarity < v.thresholds.MinSimilarity {
		result.Reason = fmt.Sprintf("face similarity %.1f below required %.1f", cmp.Similarity, v.thresholds.MinSimilarity)
		return result, nil
	}

	if v.thresholds.RequireLiveness {
		live := v.gateway.Call(ctx, providers.IDLiveness, providers.Request{
			Operation: "check",
			ProcessID: processID,
			Blobs:     map[string][]byte{"image": selfie},
		})
		result.Simulated = result.Simulated || live.Simulated
		passed := live.IsVerified()
		result.Live = &passed
		if n := negative(live, "liveness check failed"); n != nil {
			result.Reason, result.ProviderFailure = n.reason, n.providerFailure
			return result, nil
		}
	}

	result.Verified = true
	return result, nil
}

func (v *BiometricVerifier) checkQuality(q FaceQuality) string {
	t := v.thresholds
	switch {
	case !q.FacePresent:
		return "no face detected in selfie"
	case q.Confidence < t.MinFaceConfidence:
		return fmt.Sprintf("face confidence %.1f below required %.1f", q.Confidence, t.MinFaceConfidence)
	case q.Sharpness < t.MinSharpness:
		return "selfie image too blurry"
	case q.Brightness < t.MinBrightness:
		return "selfie image too dark"
	}
	return ""
}
