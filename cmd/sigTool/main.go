package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/rehash-labs/erc7739-go/internal/aws"
	"github.com/rehash-labs/erc7739-go/internal/keygen/awskms"
	"github.com/rehash-labs/erc7739-go/internal/keygen/local"
	"github.com/rehash-labs/erc7739-go/pkg/account"
	"github.com/rehash-labs/erc7739-go/pkg/chain"
	"github.com/rehash-labs/erc7739-go/pkg/client"
	"github.com/rehash-labs/erc7739-go/pkg/config"
	"github.com/rehash-labs/erc7739-go/pkg/eip712"
	"github.com/rehash-labs/erc7739-go/pkg/envelope"
	"github.com/rehash-labs/erc7739-go/pkg/logger"
	"github.com/rehash-labs/erc7739-go/pkg/rehash"
	"github.com/rehash-labs/erc7739-go/pkg/types"
	"github.com/rehash-labs/erc7739-go/pkg/verifier"
	"github.com/rehash-labs/erc7739-go/pkg/wallet"
)

func main() {
	app := &cli.App{
		Name:  "sig-tool",
		Usage: "Sign, decode and verify defensively rehashed signatures",
		Description: `Tooling around the extended signature format used by smart accounts
that rehash app-provided typed data under their own EIP-712 domain.

The tool can:
- Produce TypedDataSign and PersonalSign signatures with a local or KMS key
- Decode extended signature blobs into their parts
- Verify signatures offline with a local engine
- Query a deployed account's EIP-712 domain via ERC-5267`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvServiceVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "Generate a secp256k1 signing key (local or AWS KMS)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "kms",
						Usage: "Create the key in AWS KMS instead of locally",
					},
					&cli.StringFlag{
						Name:     "name",
						Usage:    "Key name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "alias",
						Usage: "Key alias (defaults to the key name)",
					},
					&cli.StringFlag{
						Name:    "region",
						Usage:   "AWS region for KMS keys",
						EnvVars: []string{config.EnvAWSRegion},
					},
				},
				Action: keygenCommand,
			},
			{
				Name:  "key-info",
				Usage: "Show the address and public key behind a KMS key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key-id",
						Usage:    "KMS key ID",
						EnvVars:  []string{config.EnvAWSKMSKeyID},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "region",
						Usage:   "AWS region",
						EnvVars: []string{config.EnvAWSRegion},
					},
				},
				Action: keyInfoCommand,
			},
			{
				Name:  "sign-typed",
				Usage: "Sign app typed data through the nested TypedDataSign workflow",
				Flags: append(append(signerFlags(), domainFlags("account")...), append(domainFlags("app"),
					&cli.StringFlag{
						Name:     "contents-hash",
						Usage:    "hashStruct of the app contents (32-byte hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "contents-type",
						Usage:    "EIP-712 type descriptor of the contents, e.g. \"Mail(address from,address to,string message)\"",
						Required: true,
					})...),
				Action: signTypedCommand,
			},
			{
				Name:  "sign-personal",
				Usage: "Sign a plain message through the PersonalSign workflow",
				Flags: append(append(signerFlags(), domainFlags("account")...),
					&cli.StringFlag{
						Name:     "message",
						Usage:    "Message to sign",
						Required: true,
					}),
				Action: signPersonalCommand,
			},
			{
				Name:  "decode",
				Usage: "Decode an extended signature blob",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "signature",
						Usage:    "Extended signature blob (hex)",
						Required: true,
					},
				},
				Action: decodeCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a signature offline with a local engine",
				Flags: append(domainFlags("account"),
					&cli.StringFlag{
						Name:     "owner",
						Usage:    "Owner address signatures must recover to",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "hash",
						Usage:    "App digest passed to isValidSignature (32-byte hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signature",
						Usage:    "Signature blob (hex)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "skip-rehash",
						Usage: "Validate directly against the hash without rehashing",
					}),
				Action: verifyCommand,
			},
			{
				Name:  "probe",
				Usage: "Ask a running verifier service whether an account supports rehashing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Verifier service base URL",
						Value: "http://localhost:8080",
					},
					&cli.StringFlag{
						Name:     "account-id",
						Usage:    "Registered account ID",
						Required: true,
					},
				},
				Action: probeCommand,
			},
			{
				Name:  "domain",
				Usage: "Fetch a deployed account's EIP-712 domain via ERC-5267",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "rpc-url",
						Usage:   "Ethereum RPC endpoint",
						Value:   "http://localhost:8545",
						EnvVars: []string{config.EnvServiceRPCURL},
					},
					&cli.StringFlag{
						Name:     "address",
						Usage:    "Deployed account address",
						Required: true,
					},
				},
				Action: domainCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// signerFlags selects between a local private key and an AWS KMS key.
func signerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "private-key",
			Usage: "Hex-encoded secp256k1 private key",
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key ID to sign with",
			EnvVars: []string{config.EnvAWSKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "AWS region for KMS signing",
			EnvVars: []string{config.EnvAWSRegion},
		},
	}
}

// domainFlags describes one EIP-712 domain under a flag prefix, e.g.
// --account-name or --app-chain-id.
func domainFlags(prefix string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  prefix + "-name",
			Usage: fmt.Sprintf("%s domain name", prefix),
		},
		&cli.StringFlag{
			Name:  prefix + "-version",
			Usage: fmt.Sprintf("%s domain version", prefix),
		},
		&cli.Int64Flag{
			Name:  prefix + "-chain-id",
			Usage: fmt.Sprintf("%s domain chain ID", prefix),
		},
		&cli.StringFlag{
			Name:  prefix + "-contract",
			Usage: fmt.Sprintf("%s verifying contract address", prefix),
		},
		&cli.StringFlag{
			Name:  prefix + "-salt",
			Usage: fmt.Sprintf("%s domain salt (32-byte hex, optional)", prefix),
		},
	}
}

func newToolLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
}

func domainFromFlags(c *cli.Context, prefix string) eip712.Domain {
	d := eip712.Domain{
		Name:    c.String(prefix + "-name"),
		Version: c.String(prefix + "-version"),
	}
	if v := c.Int64(prefix + "-chain-id"); v != 0 {
		d.ChainId = big.NewInt(v)
	}
	if addr := c.String(prefix + "-contract"); addr != "" {
		d.VerifyingContract = common.HexToAddress(addr)
	}
	if salt := c.String(prefix + "-salt"); salt != "" {
		d.Salt = common.HexToHash(salt)
	}
	return d
}

// signerFromFlags builds a wallet signer from --private-key or --kms-key-id.
func signerFromFlags(ctx context.Context, c *cli.Context, l *zap.Logger) (wallet.Signer, error) {
	privateKey := c.String("private-key")
	kmsKeyID := c.String("kms-key-id")

	switch {
	case privateKey != "" && kmsKeyID != "":
		return nil, fmt.Errorf("use either --private-key or --kms-key-id, not both")
	case privateKey != "":
		return wallet.NewPrivateKeySignerFromHex(privateKey)
	case kmsKeyID != "":
		awsCfg, err := aws.LoadAWSConfig(ctx, c.String("region"))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return wallet.NewKmsSigner(ctx, awsCfg, kmsKeyID, l)
	default:
		return nil, fmt.Errorf("a signer is required: set --private-key or --kms-key-id")
	}
}

func parseHash32(value, flagName string) (common.Hash, error) {
	raw, err := hexutil.Decode(value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid --%s: %w", flagName, err)
	}
	if len(raw) != 32 {
		return common.Hash{}, fmt.Errorf("invalid --%s: expected 32 bytes, got %d", flagName, len(raw))
	}
	return common.BytesToHash(raw), nil
}

func keygenCommand(c *cli.Context) error {
	l, err := newToolLogger(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	keyName := c.String("name")
	aliasName := c.String("alias")
	if aliasName == "" {
		aliasName = keyName
	}

	if c.Bool("kms") {
		awsCfg, err := aws.LoadAWSConfig(ctx, c.String("region"))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}

		identity, err := aws.GetCallerIdentity(awsCfg)
		if err != nil {
			return fmt.Errorf("failed to verify AWS credentials: %w", err)
		}
		l.Sugar().Infow("Creating KMS key", "awsAccount", *identity.Account, "region", awsCfg.Region)

		generator := awskms.NewAWSKMSKeyGenerator(awsCfg, awsCfg.Region, l)
		key, err := generator.GenerateECDSAKey(ctx, keyName, aliasName)
		if err != nil {
			return fmt.Errorf("failed to create KMS key: %w", err)
		}

		pubKeyHex, err := key.GetPublicKeyHex()
		if err != nil {
			return err
		}

		fmt.Printf("✅ Created KMS key\n")
		fmt.Printf("   keyId:     %s\n", key.KeyId)
		fmt.Printf("   alias:     alias/%s\n", aliasName)
		fmt.Printf("   address:   %s\n", key.Address)
		fmt.Printf("   publicKey: %s\n", pubKeyHex)
		return nil
	}

	generator := local.NewLocalKeyGenerator(l)
	key, err := generator.GenerateECDSAKey(ctx, keyName, aliasName)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	pubKeyHex, err := key.GetPublicKeyHex()
	if err != nil {
		return err
	}

	fmt.Printf("✅ Generated local key\n")
	fmt.Printf("   keyId:      %s\n", key.KeyId)
	fmt.Printf("   address:    %s\n", key.Address)
	fmt.Printf("   publicKey:  %s\n", pubKeyHex)
	fmt.Printf("   privateKey: %s\n", key.PrivateKeyHex)
	fmt.Printf("⚠️  The private key is printed once and not stored anywhere.\n")
	return nil
}

func keyInfoCommand(c *cli.Context) error {
	l, err := newToolLogger(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	awsCfg, err := aws.LoadAWSConfig(ctx, c.String("region"))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	generator := awskms.NewAWSKMSKeyGenerator(awsCfg, awsCfg.Region, l)
	key, err := generator.GetECDSAKeyById(ctx, c.String("key-id"))
	if err != nil {
		return fmt.Errorf("failed to look up key: %w", err)
	}

	pubKeyHex, err := key.GetPublicKeyHex()
	if err != nil {
		return err
	}

	fmt.Printf("keyId:     %s\n", key.KeyId)
	fmt.Printf("address:   %s\n", key.Address)
	fmt.Printf("publicKey: %s\n", pubKeyHex)
	return nil
}

func signTypedCommand(c *cli.Context) error {
	l, err := newToolLogger(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	signer, err := signerFromFlags(ctx, c, l)
	if err != nil {
		return err
	}

	contentsHash, err := parseHash32(c.String("contents-hash"), "contents-hash")
	if err != nil {
		return err
	}

	accountDomain := domainFromFlags(c, "account")
	appDomain := domainFromFlags(c, "app")

	blob, err := wallet.SignTypedData(ctx, signer, accountDomain, appDomain, contentsHash, c.String("contents-type"))
	if err != nil {
		return fmt.Errorf("failed to sign typed data: %w", err)
	}

	appSeparator := appDomain.Separator()
	digest := rehash.CandidateHash(appSeparator, contentsHash)

	fmt.Printf("✅ Signed typed data\n")
	fmt.Printf("   signer:       %s\n", signer.Address())
	fmt.Printf("   appSeparator: %s\n", appSeparator)
	fmt.Printf("   digest:       %s\n", digest)
	fmt.Printf("   signature:    %s\n", hexutil.Encode(blob))
	return nil
}

func signPersonalCommand(c *cli.Context) error {
	l, err := newToolLogger(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	signer, err := signerFromFlags(ctx, c, l)
	if err != nil {
		return err
	}

	accountDomain := domainFromFlags(c, "account")

	hash, sig, err := wallet.SignPersonal(ctx, signer, accountDomain, []byte(c.String("message")))
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}

	fmt.Printf("✅ Signed message\n")
	fmt.Printf("   signer:    %s\n", signer.Address())
	fmt.Printf("   hash:      %s\n", hash)
	fmt.Printf("   signature: %s\n", hexutil.Encode(sig))
	return nil
}

func decodeCommand(c *cli.Context) error {
	blob, err := hexutil.Decode(c.String("signature"))
	if err != nil {
		return fmt.Errorf("invalid --signature: %w", err)
	}

	env, err := envelope.Decode(blob)
	if err != nil {
		return fmt.Errorf("failed to decode extended signature: %w", err)
	}

	fmt.Printf("originalSignature:   %s\n", hexutil.Encode(env.OriginalSignature))
	fmt.Printf("appDomainSeparator:  %s\n", env.AppDomainSeparator)
	fmt.Printf("contentsHash:        %s\n", env.ContentsHash)
	fmt.Printf("contentsDescription: %q\n", env.ContentsDescription)

	d, err := env.Descriptor()
	if err != nil {
		fmt.Printf("descriptor:          invalid (%v)\n", err)
		return nil
	}

	mode := "explicit"
	if !d.Explicit {
		mode = "implicit"
	}
	fmt.Printf("contentsName:        %s (%s)\n", d.Name, mode)
	fmt.Printf("typedDataSignType:   %s\n", rehash.TypedDataSignTypeHash(d))
	return nil
}

func verifyCommand(c *cli.Context) error {
	hash, err := parseHash32(c.String("hash"), "hash")
	if err != nil {
		return err
	}
	sig, err := hexutil.Decode(c.String("signature"))
	if err != nil {
		return fmt.Errorf("invalid --signature: %w", err)
	}

	owner := common.HexToAddress(c.String("owner"))
	engine, err := verifier.New(verifier.Config{
		Validator:  account.NewECDSAValidator(owner),
		Domain:     domainFromFlags(c, "account"),
		SkipRehash: c.Bool("skip-rehash"),
	})
	if err != nil {
		return err
	}

	result := engine.Verify(hash, sig)
	magic := result.MagicValue()

	fmt.Printf("verdict:    %s\n", result.Verdict)
	fmt.Printf("workflow:   %s\n", result.Workflow)
	fmt.Printf("magicValue: %s\n", hexutil.Encode(magic[:]))
	fmt.Printf("digest:     %s\n", result.Digest)
	return nil
}

func probeCommand(c *cli.Context) error {
	l, err := newToolLogger(c)
	if err != nil {
		return err
	}

	svc, err := client.NewClient(&client.ClientConfig{
		BaseURL: c.String("url"),
		Logger:  l,
	})
	if err != nil {
		return fmt.Errorf("failed to create service client: %w", err)
	}

	resp, err := svc.Probe(context.Background(), &types.ProbeRequest{
		AccountID: c.String("account-id"),
	})
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}

	fmt.Printf("accountId:  %s\n", c.String("account-id"))
	fmt.Printf("supported:  %t\n", resp.Supported)
	fmt.Printf("magicValue: %s\n", resp.MagicValue)
	return nil
}

func domainCommand(c *cli.Context) error {
	l, err := newToolLogger(c)
	if err != nil {
		return err
	}

	caller, err := chain.NewCaller(c.String("rpc-url"), l)
	if err != nil {
		return err
	}
	defer caller.Close()

	address := common.HexToAddress(c.String("address"))
	domain, err := caller.EIP712Domain(context.Background(), address)
	if err != nil {
		return fmt.Errorf("failed to fetch domain: %w", err)
	}

	fmt.Printf("name:              %s\n", domain.Name)
	fmt.Printf("version:           %s\n", domain.Version)
	if domain.ChainId != nil {
		fmt.Printf("chainId:           %s\n", domain.ChainId)
	} else {
		fmt.Printf("chainId:           (absent)\n")
	}
	fmt.Printf("verifyingContract: %s\n", domain.VerifyingContract)
	fmt.Printf("salt:              %s\n", domain.Salt)
	fmt.Printf("separator:         %s\n", domain.Separator())
	return nil
}
