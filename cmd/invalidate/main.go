// Command invalidate publishes one invalidation event to the mapserver topic.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/botanitours-map/internal/invalidation"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type eventFlags struct {
	op, kind, file, bbox string
	id                   int64
}

func buildEvent(f eventFlags, now time.Time) (invalidation.Event, error) {
	ev := invalidation.Event{
		Version: 1,
		Op:      f.op,
		Kind:    f.kind,
		TS:      now.UTC(),
		File:    f.file,
	}
	if f.id > 0 {
		id := f.id
		ev.ID = &id
	}
	if f.bbox != "" {
		parts := strings.Split(f.bbox, ",")
		if len(parts) != 4 {
			return ev, errors.New("bbox: expected w,s,e,n")
		}
		var v [4]float64
		for i, p := range parts {
			x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return ev, fmt.Errorf("bbox: %w", err)
			}
			v[i] = x
		}
		ev.BBox = &invalidation.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: "EPSG:4326"}
	}
	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	brokers := flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated broker list")
	topic := flag.String("topic", getenv("KAFKA_TOPIC", "botanitours-invalidation"), "invalidation topic")
	var f eventFlags
	flag.StringVar(&f.op, "op", "update", "insert|update|delete")
	flag.StringVar(&f.kind, "kind", invalidation.KindPlant, "Plant|Garden|cluster")
	flag.Int64Var(&f.id, "id", 0, "POI id")
	flag.StringVar(&f.file, "file", "", "cluster file name (kind=cluster)")
	flag.StringVar(&f.bbox, "bbox", "", "affected area w,s,e,n")
	flag.Parse()

	ev, err := buildEvent(f, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid event:", err)
		return 2
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		return 1
	}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Version = sarama.V2_1_0_0
	prod, err := sarama.NewSyncProducer(strings.Split(*brokers, ","), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "producer create:", err)
		return 1
	}
	defer func() { _ = prod.Close() }()

	partition, offset, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: *topic,
		Value: sarama.ByteEncoder(raw),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "send message:", err)
		return 1
	}
	fmt.Printf("published %s %s to %s[%d]@%d\n", ev.Op, ev.Kind, *topic, partition, offset)
	return 0
}
