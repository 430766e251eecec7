package rds

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/cloud"
	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

const dbInstanceNotFoundCode = "DBInstanceNotFound"

type api interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

type Locator struct {
	client api
}

func NewLocator(cfg aws.Config) *Locator {
	return &Locator{client: rds.NewFromConfig(cfg)}
}

// ResolveZone returns the zone the instance currently runs in. An unknown
// instance or one without a zone is reported as not found, not as an error.
func (l *Locator) ResolveZone(ctx context.Context, db models.DatabaseID) (string, bool, error) {
	resp, err := l.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: aws.String(string(db)),
	})
	if err != nil {
		if code, ok := cloud.ErrorCode(err); ok && code == dbInstanceNotFoundCode {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to describe db instance: %w", err)
	}
	if len(resp.DBInstances) == 0 {
		return "", false, nil
	}
	zone := aws.ToString(resp.DBInstances[0].AvailabilityZone)
	return zone, zone != "", nil
}
