package engine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
)

var errBadPadding = errors.New("invalid PKCS#7 padding")

// decryptSegment reverses AES-128-CBC segment encryption. Without an explicit
// IV the media sequence number is used, big-endian in the low bytes.
func decryptSegment(data, key, iv []byte, sequence uint64) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(data))
	}

	if len(iv) != aes.BlockSize {
		iv = make([]byte, aes.BlockSize)
		binary.BigEndian.PutUint64(iv[8:], sequence)
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	return unpad(plain)
}

func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errBadPadding
	}

	if !bytes.Equal(data[len(data)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, errBadPadding
	}

	return data[:len(data)-n], nil
}
