package control_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nodeward/nodeward/control"
)

// Open a connection to a node's control endpoint and issue one query. The
// node's control public key comes from configuration, never from the wire.
func Example() {
	serverKey, err := control.ParsePublicKey("S1KCaHr7wHI4f06GY4uPstZnPC6UIDzwkYq48B3lhG8")
	if err != nil {
		log.Fatalf("parsing server key: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := control.Dial(ctx, "127.0.0.1:5031", &control.Config{ServerKey: serverKey})
	if err != nil {
		log.Fatalf("dial control: %s", err)
	}
	defer conn.Close()

	answer, err := conn.Call(ctx, []byte("payload encoded by the command layer"))
	if err != nil {
		log.Fatalf("call: %s", err)
	}
	fmt.Printf("%d answer bytes\n", len(answer))
}
