package catalog

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "pehchan/pkg/domain-errors"
)

type PricingSuite struct {
	suite.Suite
}

func TestPricingSuite(t *testing.T) {
	suite.Run(t, new(PricingSuite))
}

func (s *PricingSuite) TestPriceFor() {
	s.Run("basic voter id is the less-advanced tier", func() {
		p, err := PriceFor(MethodBasicVoterID)
		s.Require().NoError(err)
		s.Equal(20.0, p.Base)
		s.Equal(3.60, p.Tax)
		s.Equal(23.60, p.Total)
	})

	s.Run("advanced aadhaar is the most-advanced tier", func() {
		p, err := PriceFor(MethodAdvancedAadhaar)
		s.Require().NoError(err)
		s.Equal(50.0, p.Base)
		s.Equal(9.00, p.Tax)
		s.Equal(59.00, p.Total)
	})

	s.Run("aadhaar otp is the medium tier", func() {
		p, err := PriceFor(MethodAadhaarOTP)
		s.Require().NoError(err)
		s.Equal(35.0, p.Base)
		s.Equal(41.30, p.Total)
	})

	s.Run("total is always round2 of base times 1.18", func() {
		for _, m := range Methods() {
			p, err := PriceFor(m)
			s.Require().NoError(err, m)
			s.Equal(Round2(p.Base*1.18), p.Total, m)
			s.Equal(Round2(p.Base+p.Tax), p.Total, m)
		}
	})

	s.Run("unknown method is a validation error, not a default tier", func() {
		_, err := PriceFor(Method("carrier-pigeon"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *PricingSuite) TestTotalPaise() {
	s.Run("converts rupees to the gateway's smallest unit", func() {
		p, err := PriceFor(MethodBasicVoterID)
		s.Require().NoError(err)
		s.Equal(int64(2360), p.TotalPaise())

		p, err = PriceFor(MethodAdvancedAadhaar)
		s.Require().NoError(err)
		s.Equal(int64(5900), p.TotalPaise())
	})
}

func (s *PricingSuite) TestRound2() {
	s.Run("rounds half up", func() {
		s.Equal(0.01, Round2(0.005))
		s.Equal(1.23, Round2(1.234))
		s.Equal(3.60, Round2(20*0.18))
	})
}
