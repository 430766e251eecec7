package ec2

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/Sh00ty/cloud-nlb/rds-tg-sync/internal/models"
)

const (
	groupIDFilter          = "group-id"
	availabilityZoneFilter = "availability-zone"
)

type Topology struct {
	client ec2.DescribeNetworkInterfacesAPIClient
}

func NewTopology(cfg aws.Config) *Topology {
	return &Topology{client: ec2.NewFromConfig(cfg)}
}

// ListAddresses returns the primary private ip of every network interface
// attached to the security group in the zone, in the order ec2 lists them.
func (t *Topology) ListAddresses(ctx context.Context, sg models.SecurityGroupID, zone string) ([]string, error) {
	paginator := ec2.NewDescribeNetworkInterfacesPaginator(t.client, &ec2.DescribeNetworkInterfacesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String(groupIDFilter),
				Values: []string{string(sg)},
			},
			{
				Name:   aws.String(availabilityZoneFilter),
				Values: []string{zone},
			},
		},
	})

	result := make([]string, 0, 4)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network interfaces: %w", err)
		}
		for _, iface := range page.NetworkInterfaces {
			if iface.PrivateIpAddress == nil {
				continue
			}
			result = append(result, aws.ToString(iface.PrivateIpAddress))
		}
	}
	return result, nil
}
