package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"onboard/pkg/platform/sentinel"
)

// kmsDecrypter is the slice of the KMS client this package uses.
type kmsDecrypter interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSSource decrypts KMS-encrypted bundles stored base64 in SECRET_<ID>_KMS.
type KMSSource struct {
	client kmsDecrypter
	keyID  string
	lookup func(string) (string, bool)
}

// NewKMSSource loads the default AWS config (env, shared profile, IMDS) and
// builds a KMS-backed source. keyID may be empty for symmetric keys whose id
// is embedded in the ciphertext.
func NewKMSSource(ctx context.Context, region, keyID string) (*KMSSource, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newKMSSource(kms.NewFromConfig(cfg), keyID, os.LookupEnv), nil
}

func newKMSSource(client kmsDecrypter, keyID string, lookup func(string) (string, bool)) *KMSSource {
	return &KMSSource{client: client, keyID: keyID, lookup: lookup}
}

func (s *KMSSource) GetSecret(ctx context.Context, id string) (Bundle, error) {
	encoded, ok := s.lookup(envKey(id, "_KMS"))
	if !ok || encoded == "" {
		return Bundle{}, fmt.Errorf("secret %q: %w", id, sentinel.ErrNotFound)
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Bundle{}, fmt.Errorf("decode secret %q: %w", id, err)
	}
	in := &kms.DecryptInput{
		CiphertextBlob:    blob,
		EncryptionContext: map[string]string{"secret_id": id},
	}
	if s.keyID != "" {
		in.KeyId = aws.String(s.keyID)
	}
	out, err := s.client.Decrypt(ctx, in)
	if err != nil {
		return Bundle{}, fmt.Errorf("kms decrypt %q: %w", id, err)
	}
	return decodeBundle(id, out.Plaintext)
}
