package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Ethernal-Tech/ethgo"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	// ECDSASignatureLength is the length of an R || S || V signature
	ECDSASignatureLength = 65
	// PrivateKeyLength is the length of a raw secp256k1 private key
	PrivateKeyLength = 32

	compactRecoveryOffset = 27
)

var (
	errInvalidSignatureLength = errors.New("invalid signature length")
	errInvalidRecoveryID      = errors.New("invalid signature recovery id")
	errInvalidPrivateKey      = errors.New("invalid private key")
)

// Keccak256 calculates the legacy keccak256 hash of the concatenated input
func Keccak256(v ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, i := range v {
		h.Write(i)
	}

	return h.Sum(nil)
}

// Keccak256Hash calculates keccak256 and returns it as ethgo.Hash
func Keccak256Hash(v ...[]byte) ethgo.Hash {
	return ethgo.BytesToHash(Keccak256(v...))
}

// ModuleAddress derives the account address owned by a named module
func ModuleAddress(name string) ethgo.Address {
	return ethgo.BytesToAddress(Keccak256([]byte("module"), []byte(name))[12:])
}

// PubKeyToAddress returns the ethereum address of the given public key
func PubKeyToAddress(pub *btcec.PublicKey) ethgo.Address {
	buf := Keccak256(pub.SerializeUncompressed()[1:])

	return ethgo.BytesToAddress(buf[12:])
}

// Key is a secp256k1 key used by orchestrators to sign bridge checkpoints
type Key struct {
	priv *btcec.PrivateKey
}

// GenerateKey creates a new random key
func GenerateKey() (*Key, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	return &Key{priv: priv}, nil
}

// NewKeyFromBytes creates a key from a raw 32 byte private key
func NewKeyFromBytes(raw []byte) (*Key, error) {
	if len(raw) != PrivateKeyLength {
		return nil, errInvalidPrivateKey
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)

	return &Key{priv: priv}, nil
}

// NewKeyFromHex creates a key from a hex encoded private key (with or without 0x prefix)
func NewKeyFromHex(str string) (*Key, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(str), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidPrivateKey, err)
	}

	return NewKeyFromBytes(raw)
}

// ReadKeyFile reads a hex encoded private key from the given file
func ReadKeyFile(path string) (*Key, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	return NewKeyFromHex(string(content))
}

// Address returns the ethereum address of the key
func (k *Key) Address() ethgo.Address {
	return PubKeyToAddress(k.priv.PubKey())
}

// Bytes returns the raw private key
func (k *Key) Bytes() []byte {
	return k.priv.Serialize()
}

// Hex returns the hex encoded private key
func (k *Key) Hex() string {
	return hex.EncodeToString(k.Bytes())
}

// Sign signs the 32 byte hash and returns an R || S || V signature with V in {0, 1}
func (k *Key) Sign(hash []byte) ([]byte, error) {
	compact := ecdsa.SignCompact(k.priv, hash, false)

	sig := make([]byte, ECDSASignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0] - compactRecoveryOffset

	return sig, nil
}

// RecoverAddress recovers the address of the signer of the given hash
func RecoverAddress(hash, sig []byte) (ethgo.Address, error) {
	if len(sig) != ECDSASignatureLength {
		return ethgo.ZeroAddress, errInvalidSignatureLength
	}

	v := sig[64]
	if v >= compactRecoveryOffset {
		v -= compactRecoveryOffset
	}

	if v > 1 {
		return ethgo.ZeroAddress, errInvalidRecoveryID
	}

	compact := make([]byte, ECDSASignatureLength)
	compact[0] = v + compactRecoveryOffset
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return ethgo.ZeroAddress, err
	}

	return PubKeyToAddress(pub), nil
}
