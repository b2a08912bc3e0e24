package wallet

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// KmsSigner signs digests with an ECC_SECG_P256K1 key held in AWS KMS. The
// key's public half is fetched once at construction so signing needs a single
// KMS round trip.
type KmsSigner struct {
	logger    *zap.Logger
	kmsClient *kms.Client
	keyID     string
	publicKey *cryptoEcdsa.PublicKey
	address   common.Address
}

func NewKmsSigner(ctx context.Context, awsCfg aws.Config, keyID string, logger *zap.Logger) (*KmsSigner, error) {
	kmsClient := kms.NewFromConfig(awsCfg)

	out, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s", keyID)
	}

	publicKey, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s", keyID)
	}

	return &KmsSigner{
		logger:    logger,
		kmsClient: kmsClient,
		keyID:     keyID,
		publicKey: publicKey,
		address:   crypto.PubkeyToAddress(*publicKey),
	}, nil
}

func (s *KmsSigner) Address() common.Address {
	return s.address
}

// PublicKey returns the key's public half as fetched from KMS.
func (s *KmsSigner) PublicKey() *cryptoEcdsa.PublicKey {
	return s.publicKey
}

func (s *KmsSigner) SignDigest(ctx context.Context, digest common.Hash) ([]byte, error) {
	signOutput, err := s.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest.Bytes(),
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign with key %s", s.keyID)
	}

	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(signOutput.Signature, &sigAsn1); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 signature: %w", err)
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	sVal := new(big.Int).SetBytes(sigAsn1.S.Bytes)

	// KMS does not canonicalize S, so fold high-S into the low half before
	// searching for the recovery id.
	curveOrder := crypto.S256().Params().N
	halfOrder := new(big.Int).Rsh(curveOrder, 1)
	if sVal.Cmp(halfOrder) > 0 {
		sVal = new(big.Int).Sub(curveOrder, sVal)
	}

	rBytes := r.FillBytes(make([]byte, 32))
	sBytes := sVal.FillBytes(make([]byte, 32))

	for recoveryID := 0; recoveryID < 4; recoveryID++ {
		signature := make([]byte, crypto.SignatureLength)
		copy(signature[0:32], rBytes)
		copy(signature[32:64], sBytes)
		signature[64] = byte(recoveryID)

		recoveredBytes, err := crypto.Ecrecover(digest.Bytes(), signature)
		if err != nil {
			s.logger.Debug("Ecrecover failed",
				zap.Int("recoveryId", recoveryID),
				zap.Error(err))
			continue
		}

		recovered, err := crypto.UnmarshalPubkey(recoveredBytes)
		if err != nil {
			s.logger.Warn("Failed to unmarshal recovered public key",
				zap.Int("recoveryId", recoveryID),
				zap.Error(err))
			continue
		}

		if recovered.X.Cmp(s.publicKey.X) == 0 && recovered.Y.Cmp(s.publicKey.Y) == 0 {
			signature[64] = byte(27 + recoveryID)
			return signature, nil
		}
	}

	return nil, fmt.Errorf("could not determine valid recovery ID for key %s", s.keyID)
}

// parseECDSAPublicKey parses the DER-encoded public key KMS returns.
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}
