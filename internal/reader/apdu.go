package reader

// APDU command set for Mifare Classic storage cards behind a PC/SC reader
// (ACR122U command contract). Each transceive returns a data payload and a
// two-byte status pair; (0x90, 0x00) is success, anything else is failure.

// Card data layout: three 16-byte blocks in sector 1.
const (
	BalanceBlock  byte = 4
	IdentityBlock byte = 5
	ChecksumBlock byte = 6
)

const (
	swOK1 = 0x90
	swOK2 = 0x00

	keyTypeA = 0x60
)

// DefaultKeyA is the factory transport key. Deployments set their own via
// configuration.
var DefaultKeyA = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

func statusOK(sw1, sw2 byte) bool { return sw1 == swOK1 && sw2 == swOK2 }

// cmdGetUID asks the reader for the UID of the card in the field.
func cmdGetUID() []byte {
	return []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}
}

// cmdAuth loads the key and authenticates it against block's sector.
func cmdAuth(block byte, key []byte) []byte {
	cmd := []byte{0xFF, 0x86, 0x00, 0x00, 0x05, 0x01, 0x00, block, keyTypeA}
	return append(cmd, key...)
}

// cmdReadBlock reads one 16-byte block.
func cmdReadBlock(block byte) []byte {
	return []byte{0xFF, 0xB0, 0x00, block, 0x10}
}

// cmdWriteBlock writes one 16-byte block.
func cmdWriteBlock(block byte, data []byte) []byte {
	cmd := []byte{0xFF, 0xD6, 0x00, block, 0x10}
	return append(cmd, data...)
}
