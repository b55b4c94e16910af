package format

import (
	"fmt"
	"io"
	"math"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/briangreenhill/hrmerge/internal/activity"
)

// Parquet writes one row per trackpoint for offline analysis. It cannot be
// read back.
type Parquet struct{}

type sampleRow struct {
	LapIndex     int64   `parquet:"name=lap_index, type=INT64"`
	TSUTCISO     string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	EpochS       int64   `parquet:"name=epoch_s, type=INT64"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	AltitudeM    float64 `parquet:"name=altitude_m, type=DOUBLE"`
	HRBPM        int64   `parquet:"name=hr_bpm, type=INT64"`
	ValidHR      bool    `parquet:"name=valid_hr, type=BOOLEAN"`
	LatitudeDeg  float64 `parquet:"name=latitude_deg, type=DOUBLE"`
	LongitudeDeg float64 `parquet:"name=longitude_deg, type=DOUBLE"`
	HasPosition  bool    `parquet:"name=has_position, type=BOOLEAN"`
}

func (Parquet) Dump(w io.Writer, a *activity.Activity) error {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(sampleRow), 4)
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, lap := range a.Laps {
		for _, tp := range lap.Trackpoints {
			row := sampleRow{
				LapIndex:     int64(i),
				TSUTCISO:     activity.FormatTimestamp(tp.Time),
				EpochS:       tp.Time.Unix(),
				DistanceM:    tp.Distance,
				AltitudeM:    tp.Altitude,
				HRBPM:        int64(tp.HeartRate),
				ValidHR:      tp.HeartRate > 0,
				LatitudeDeg:  math.NaN(),
				LongitudeDeg: math.NaN(),
			}
			if tp.Position != nil {
				row.LatitudeDeg = tp.Position.Latitude
				row.LongitudeDeg = tp.Position.Longitude
				row.HasPosition = true
			}
			if err := pw.Write(row); err != nil {
				_ = pw.WriteStop()
				return err
			}
		}
	}
	if err := pw.WriteStop(); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}
	_, err = w.Write(fw.Bytes())
	return err
}
