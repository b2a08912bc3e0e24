package awskms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/internal/keygen"
	"github.com/rehash-labs/erc7739-go/pkg/wallet"
)

// AWSKMSKeyGenerator provisions signing keys inside AWS KMS. Key material
// stays in the HSM; signing goes through wallet.KmsSigner.
type AWSKMSKeyGenerator struct {
	logger    *zap.Logger
	awsConfig aws.Config
	kmsClient *kms.Client
	awsRegion string
}

func NewAWSKMSKeyGenerator(awsCfg aws.Config, awsRegion string, logger *zap.Logger) *AWSKMSKeyGenerator {
	return &AWSKMSKeyGenerator{
		logger:    logger,
		awsConfig: awsCfg,
		kmsClient: kms.NewFromConfig(awsCfg),
		awsRegion: awsRegion,
	}
}

func (a *AWSKMSKeyGenerator) GenerateECDSAKey(ctx context.Context, keyName string, aliasName string) (*keygen.GeneratedKey, error) {
	keyRes, err := a.createSigningKey(ctx, keyName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ECDSA key %s in region %s", keyName, a.awsRegion)
	}

	if err := a.createKeyAlias(ctx, *keyRes.KeyMetadata.KeyId, aliasName); err != nil {
		return nil, errors.Wrapf(err, "failed to create alias %s for key %s in region %s", aliasName, *keyRes.KeyMetadata.KeyId, a.awsRegion)
	}

	return a.GetECDSAKeyById(ctx, *keyRes.KeyMetadata.KeyId)
}

func (a *AWSKMSKeyGenerator) GetECDSAKeyById(ctx context.Context, keyId string) (*keygen.GeneratedKey, error) {
	signer, err := wallet.NewKmsSigner(ctx, a.awsConfig, keyId, a.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load public key for key %s in region %s", keyId, a.awsRegion)
	}

	return &keygen.GeneratedKey{
		KeyId:     keyId,
		Address:   signer.Address(),
		PublicKey: signer.PublicKey(),
	}, nil
}

// createSigningKey creates an ECDSA key suitable for wallet signature
// workflows. KMS enforces ECC_SECG_P256K1 for secp256k1 signatures.
func (a *AWSKMSKeyGenerator) createSigningKey(ctx context.Context, keyName string) (*kms.CreateKeyOutput, error) {
	input := &kms.CreateKeyInput{
		KeyUsage:    types.KeyUsageTypeSignVerify,
		KeySpec:     types.KeySpecEccSecgP256k1,
		Description: aws.String(fmt.Sprintf("ECDSA key for wallet signature verification - %s", keyName)),
		Tags: []types.Tag{
			{
				TagKey:   aws.String("Name"),
				TagValue: aws.String(keyName),
			},
			{
				TagKey:   aws.String("Purpose"),
				TagValue: aws.String("signing-key"),
			},
			{
				TagKey:   aws.String("Curve"),
				TagValue: aws.String("secp256k1"),
			},
		},
	}

	result, err := a.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS key: %w", err)
	}
	return result, nil
}

// createKeyAlias creates an alias for the KMS key for easier reference
func (a *AWSKMSKeyGenerator) createKeyAlias(ctx context.Context, keyId, aliasName string) error {
	input := &kms.CreateAliasInput{
		AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
		TargetKeyId: aws.String(keyId),
	}

	if _, err := a.kmsClient.CreateAlias(ctx, input); err != nil {
		return fmt.Errorf("failed to create key alias: %w", err)
	}

	a.logger.Info("Created KMS key alias",
		zap.String("alias", fmt.Sprintf("alias/%s", aliasName)),
		zap.String("keyId", keyId),
	)
	return nil
}
