package abicache

import (
	"bytes"
	"encoding/json"
	"fmt"

	goabi "github.com/greymass/go-eosio/pkg/abi"
	goeosio "github.com/greymass/go-eosio/pkg/chain"
)

// UnpackBinary converts the packed ABI blob stored on chain into ABI
// JSON. Contracts publish binary ABIs; everything downstream of here
// works on the JSON form.
func UnpackBinary(binaryABI []byte) ([]byte, error) {
	reader := bytes.NewReader(binaryABI)
	decoder := goabi.NewDecoder(reader, func(dec *goabi.Decoder, v interface{}) (done bool, err error) {
		return false, nil
	})

	var abiStruct goeosio.Abi
	if err := decoder.Decode(&abiStruct); err != nil {
		return nil, fmt.Errorf("failed to decode binary ABI: %w", err)
	}

	jsonBytes, err := json.Marshal(abiStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ABI to JSON: %w", err)
	}

	return jsonBytes, nil
}
