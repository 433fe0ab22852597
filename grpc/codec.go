// Package simgrpc serves a simulator Driver over gRPC and dials it back.
//
// Messages are the cramberry-tagged structs of blocksim/types plus the
// request wrappers in wire.go; there is no protobuf schema. Both ends
// force the "cramberry" codec, so any gRPC client registering the same
// codec can talk to a served simulator.
package simgrpc

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// ContentSubtype is the codec name negotiated on the wire.
const ContentSubtype = "cramberry"

// MaxMessageSize bounds one request or response. Deploy transactions
// carry whole contracts, so it is well above the gRPC default.
const MaxMessageSize = 16 << 20

// CramberryCodec is the grpc encoding.Codec for simulator messages.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("simgrpc: encode %T: %w", v, err)
	}
	return data, nil
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("simgrpc: decode %T (%d bytes): %w", v, len(data), err)
	}
	return nil
}

func (CramberryCodec) Name() string { return ContentSubtype }

// ServerOptions returns the options a grpc.Server serving the
// simulator needs.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
	}
}

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}
