package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/surfaces"
)

var now = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func sampleReport() Report {
	s := surfaces.DoctorSummary{
		From:           now.AddDate(0, 0, -30),
		To:             now,
		Morning:        surfaces.Averages{Readings: 2, Systolic: 125, Diastolic: 82.5, Pulse: 65},
		LatestWeight:   80.4,
		LatestWeightAt: now.Add(-time.Hour),
		Readings:       []models.BloodPressure{{Context: "morning", Systolic: 125, Diastolic: 82}},
	}
	return NewReport(now, models.User{ID: "u-1", Email: "a@example.com"}, s)
}

func TestNewReport(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, "doctor-report-20261014T093000Z.json", r.Name())
	require.NotNil(t, r.LatestWeightAt)
	assert.Equal(t, 80.4, r.LatestWeightKg)

	empty := NewReport(now, models.User{}, surfaces.DoctorSummary{})
	assert.Nil(t, empty.LatestWeightAt)
	data, err := empty.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"readings": []`)
	assert.NotContains(t, string(data), "latest_weight_at")
}

func TestDirExporter(t *testing.T) {
	base := t.TempDir()
	loc, err := DirExporter{Base: base, Dir: "exports"}.Export(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "exports", "doctor-report-20261014T093000Z.json"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, 2, got.Morning.Readings)
}

func TestDirExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DirExporter{Base: t.TempDir(), Dir: "x"}.Export(ctx, sampleReport())
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Exporter(t *testing.T) {
	fake := &fakeS3{}
	loc, err := S3Exporter{Client: fake, Bucket: "reports", Prefix: "u-1"}.Export(context.Background(), sampleReport())
	require.NoError(t, err)

	assert.Equal(t, "s3://reports/u-1/doctor-report-20261014T093000Z.json", loc)
	assert.Equal(t, "reports", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "application/json", aws.ToString(fake.in.ContentType))
	assert.Contains(t, string(fake.body), `"email": "a@example.com"`)
}

func TestS3Exporter_Error(t *testing.T) {
	boom := errors.New("access denied")
	_, err := S3Exporter{Client: &fakeS3{err: boom}, Bucket: "reports"}.Export(context.Background(), sampleReport())
	assert.ErrorIs(t, err, boom)
}

func TestNewS3Client_AppliesOptions(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	var lo awsconfig.LoadOptions
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}

	c, err := NewS3Client(context.Background(), S3Options{
		Region: "eu-central-1", Endpoint: "http://127.0.0.1:9000", AccessKey: "minioadmin", SecretKey: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)

	o := c.Options()
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(o.BaseEndpoint))
	assert.True(t, o.UsePathStyle)
}

func TestNewS3Client_LoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no profile")
	}

	_, err := NewS3Client(context.Background(), S3Options{Region: "eu-central-1"})
	assert.ErrorContains(t, err, "no profile")
}
